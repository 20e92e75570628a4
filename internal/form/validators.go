package form

import (
	"strconv"
	"strings"

	"github.com/ppiankov/crowdframe/internal/section"
)

// Code names the rule a field value broke
type Code string

const (
	CodeRequired    Code = "required"
	CodeNotNumeric  Code = "not_numeric"
	CodeMin         Code = "min"
	CodeMinWords    Code = "min_words"
	CodeSelectedURL Code = "contains_selected_url"
	CodeInvalidURL  Code = "invalid_url"
)

// ValidationError is a recoverable field-level failure. It is a value,
// not an error: invalid fields are still recorded in the ledger.
type ValidationError struct {
	Field string `json:"field"`
	Code  Code   `json:"code"`
}

func (e ValidationError) String() string {
	return e.Field + ": " + string(e.Code)
}

// Validator returns the failed rule for a value, or "" when it holds
type Validator func(value string) Code

func required(value string) Code {
	if strings.TrimSpace(value) == "" {
		return CodeRequired
	}
	return ""
}

// minimum leaves empty values to required
func minimum(m float64) Validator {
	return func(value string) Code {
		value = strings.TrimSpace(value)
		if value == "" {
			return ""
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return CodeNotNumeric
		}
		if v < m {
			return CodeMin
		}
		return ""
	}
}

// activeDocument maps the stepper position to a document index. It is
// false while the worker is outside the document section.
func activeDocument(ctx Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	return section.DocumentAt(ctx.StepIndex(), ctx.QuestionnaireAmountStart(), ctx.DocumentsAmount())
}

// justification rejects texts with fewer than minWords tokens and texts
// quoting, as a standalone token, the URL most recently selected for the
// form's own document
func justification(ctx Context, document, minWords int) Validator {
	return func(value string) Code {
		if _, ok := activeDocument(ctx); !ok {
			return ""
		}
		words := Words(value)
		if len(words) < minWords {
			return CodeMinWords
		}
		if url, ok := ctx.LatestSelectedURL(document); ok && url != "" {
			for _, w := range words {
				if w == url {
					return CodeSelectedURL
				}
			}
		}
		return ""
	}
}

// retrievedURL accepts only URLs from the latest retrieval batch of the
// dimension on the active document
func retrievedURL(ctx Context, dimension int) Validator {
	return func(value string) Code {
		doc, ok := activeDocument(ctx)
		if !ok || value == "" {
			return ""
		}
		for _, u := range ctx.LatestRetrievedURLs(doc, dimension) {
			if u == value {
				return ""
			}
		}
		return CodeInvalidURL
	}
}
