package forms

import (
	"fmt"
	"regexp"

	"github.com/mberti/formdesk/model"
)

// Publish-time metadata checks, dispatched on the question type. These
// guard what may be stored; answer values are checked separately at
// submission time against whatever passed here.
var metadataChecks = map[model.QuestionType]func(*model.Metadata) string{
	model.ShortText:      checkTextMetadata,
	model.LongText:       checkTextMetadata,
	model.Integer:        checkNumericMetadata,
	model.Decimal:        checkNumericMetadata,
	model.SingleChoice:   checkChoiceMetadata,
	model.MultipleChoice: checkChoiceMetadata,
}

func validateQuestions(questions []model.Question) error {
	positions := make(map[int]bool, len(questions))
	for _, q := range questions {
		if positions[q.Position] {
			return &ValidationError{
				Position: q.Position,
				Reason:   "duplicate position",
			}
		}
		positions[q.Position] = true

		if reason := checkMetadata(q); reason != "" {
			return &ValidationError{
				Position: q.Position,
				Reason:   reason,
			}
		}
	}
	return nil
}

func checkMetadata(q model.Question) string {
	check, ok := metadataChecks[q.Type]
	if !ok {
		return fmt.Sprintf("unknown question type %q", q.Type)
	}

	m := q.Metadata
	if m != nil && m.MinValue != nil && m.MaxValue != nil && *m.MinValue > *m.MaxValue {
		return "min_value cannot be greater than max_value"
	}
	return check(m)
}

func checkNumericMetadata(m *model.Metadata) string {
	if m == nil {
		return ""
	}
	if len(m.Options) > 0 {
		return "numeric questions cannot define choice options"
	}
	return ""
}

func checkTextMetadata(m *model.Metadata) string {
	if m == nil {
		return ""
	}
	if len(m.Options) > 0 {
		return "text questions cannot define choice options"
	}
	if m.MinValue != nil || m.MaxValue != nil {
		return "text questions cannot define numeric ranges"
	}
	if m.Pattern != "" {
		if _, err := regexp.Compile(m.Pattern); err != nil {
			return fmt.Sprintf("invalid pattern: %s", err)
		}
	}
	return ""
}

func checkChoiceMetadata(m *model.Metadata) string {
	if m == nil || len(m.Options) == 0 {
		return "choice questions must define at least one option"
	}
	if m.MinValue != nil || m.MaxValue != nil {
		return "choice questions cannot define numeric ranges"
	}
	if m.Pattern != "" {
		return "choice questions cannot define a text pattern"
	}

	values := make(map[string]bool, len(m.Options))
	for _, opt := range m.Options {
		if opt.Value == "" {
			return "choice options must have a value"
		}
		if values[opt.Value] {
			return fmt.Sprintf("duplicate option value %q", opt.Value)
		}
		values[opt.Value] = true
	}
	return ""
}
