package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Task bundle file names
const (
	SettingsFile               = "task.json"
	SettingsYAMLFile           = "task.yaml"
	DimensionsFile             = "dimensions.json"
	QuestionnairesFile         = "questionnaires.json"
	InstructionsFile           = "instructions_main.json"
	EvaluationInstructionsFile = "instructions_evaluation.json"
	DocumentsFile              = "documents.json"
)

// Bundle is the parsed configuration of one task unit
type Bundle struct {
	Settings               *model.Settings
	Dimensions             []model.Dimension
	Questionnaires         []model.Questionnaire
	Instructions           []model.Instruction
	EvaluationInstructions []model.Instruction
	Documents              []model.Document
}

// LoadBundle reads a task directory. Settings come from task.json, or
// task.yaml when no JSON file exists. Questionnaires and evaluation
// instructions are optional.
func LoadBundle(dir string) (*Bundle, error) {
	b := &Bundle{}

	settings, err := loadSettings(dir)
	if err != nil {
		return nil, err
	}
	b.Settings = settings

	data, err := os.ReadFile(filepath.Join(dir, DimensionsFile))
	if err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if b.Dimensions, err = model.ParseDimensions(data); err != nil {
		return nil, err
	}

	if data, ok, err := readOptional(filepath.Join(dir, QuestionnairesFile)); err != nil {
		return nil, err
	} else if ok {
		if b.Questionnaires, err = model.ParseQuestionnaires(data); err != nil {
			return nil, err
		}
	}

	data, err = os.ReadFile(filepath.Join(dir, InstructionsFile))
	if err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	if b.Instructions, err = model.ParseInstructions(data); err != nil {
		return nil, err
	}

	if data, ok, err := readOptional(filepath.Join(dir, EvaluationInstructionsFile)); err != nil {
		return nil, err
	} else if ok {
		if b.EvaluationInstructions, err = model.ParseInstructions(data); err != nil {
			return nil, err
		}
	}

	data, err = os.ReadFile(filepath.Join(dir, DocumentsFile))
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	if b.Documents, err = model.ParseDocuments(data); err != nil {
		return nil, err
	}

	return b, nil
}

func loadSettings(dir string) (*model.Settings, error) {
	data, ok, err := readOptional(filepath.Join(dir, SettingsFile))
	if err != nil {
		return nil, err
	}
	if ok {
		return model.ParseSettings(data)
	}

	data, ok, err = readOptional(filepath.Join(dir, SettingsYAMLFile))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s or %s in %s", SettingsFile, SettingsYAMLFile, dir)
	}

	// YAML goes through JSON so defaults and validation match task.json
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, model.Invalidf("settings", "decode %s: %v", SettingsYAMLFile, err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, model.Invalidf("settings", "normalize %s: %v", SettingsYAMLFile, err)
	}
	return model.ParseSettings(asJSON)
}

func readOptional(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, true, nil
}
