package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crowdframe/internal/form"
	"github.com/ppiankov/crowdframe/internal/ingest"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/session"
)

var (
	checkJSON   string
	checkWorker string
	checkEmit   bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <task-dir>",
	Short: "Validate a task directory and list the assembled forms",
	Long: `Check loads a task directory the way a worker session would:
- Parse settings, dimensions, questionnaires, instructions and documents
- Validate every dimension scale and the gold configuration
- Resolve the gold policy and check gold documents carry their anchors
- Assemble the form of every document

Any configuration problem is reported before a worker would see it.

Example:
  crowdframe check ./task
  crowdframe check ./task --json forms.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkJSON, "json", "", "write the assembled forms as JSON to this path")
	checkCmd.Flags().StringVar(&checkWorker, "worker", "check", "worker id used for the dry-run session")
	checkCmd.Flags().BoolVar(&checkEmit, "emit", false, "log the admission check through the ingestion path")
}

// checkedDocument is the JSON shape of one assembled form
type checkedDocument struct {
	Index  int           `json:"index"`
	ID     string        `json:"id"`
	Gold   bool          `json:"gold"`
	Fields []*form.Field `json:"fields"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := args[0]

	bundle, err := session.LoadBundle(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", dir, err)
		return fmt.Errorf("load task: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithOrigin(cfg.Ingest.Bucket, cfg.Ingest.Region)}
	var client *ingest.Client
	if checkEmit {
		deliverer, closeStore, err := openDeliverer(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		client = ingest.NewClient(deliverer, cfg.Concurrency.DeliveryWorkers)
		opts = append(opts, session.WithEmitter(client))
	}

	s, err := session.New(bundle, session.Identity{Worker: checkWorker}, opts...)
	if err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "✗ invalid %s: %s\n", cfgErr.Kind, cfgErr.Msg)
		} else {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		}
		return fmt.Errorf("task configuration rejected: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s / %s\n", s.Settings.TaskName, s.Settings.BatchName)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "✓ %d documents (%d gold)\n", len(s.Documents), len(s.GoldDocuments))
	fmt.Fprintf(os.Stderr, "✓ %d dimensions (%d gold)\n", len(s.Dimensions), len(s.GoldDimensions))
	fmt.Fprintf(os.Stderr, "✓ %d questionnaires\n", len(s.Questionnaires))
	fmt.Fprintf(os.Stderr, "✓ %d instruction pages\n", len(s.Instructions))
	fmt.Fprintf(os.Stderr, "✓ gold policy: %s\n", s.Policy())
	fmt.Fprintf(os.Stderr, "✓ tries allowed: %d\n", s.TriesLeft())
	fmt.Fprintf(os.Stderr, "✓ %d steps\n", s.TotalSteps())

	if client != nil {
		allowed := s.CheckWorker(nil)
		client.Close()
		delivered, failed := client.Stats()
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "✗ admission record not delivered (%d failed)\n", failed)
		} else {
			fmt.Fprintf(os.Stderr, "✓ admission record delivered (%d, allowed: %v)\n", delivered, allowed)
		}
	}
	fmt.Fprintf(os.Stderr, "\n")

	docs := make([]checkedDocument, 0, len(s.Documents))
	for i := range s.Documents {
		doc := &s.Documents[i]
		f, err := s.Form(i)
		if err != nil {
			return err
		}

		marker := " "
		if doc.IsGold() {
			marker = "★"
		}
		fmt.Fprintf(os.Stderr, "%s [%d] %s\n", marker, i, doc.ID)
		for _, field := range f.Fields() {
			req := ""
			if field.Required {
				req = " (required)"
			}
			extra := ""
			if len(field.Options) > 0 {
				extra = " [" + strings.Join(field.Options, ", ") + "]"
			}
			fmt.Fprintf(os.Stderr, "    %-32s %s%s%s\n", field.Name, field.Kind, req, extra)
		}

		docs = append(docs, checkedDocument{
			Index:  i,
			ID:     doc.ID,
			Gold:   doc.IsGold(),
			Fields: f.Fields(),
		})
	}
	fmt.Fprintf(os.Stderr, "\n")

	if checkJSON != "" {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal forms: %w", err)
		}
		if err := os.WriteFile(checkJSON, data, 0644); err != nil {
			return fmt.Errorf("write forms: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Forms written to %s\n", checkJSON)
	}

	return nil
}
