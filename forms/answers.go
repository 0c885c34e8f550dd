package forms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mberti/formdesk/model"
)

// validateAnswers checks a submission against the question snapshot it
// is about to be bound to. All-or-nothing: the first violation rejects
// the whole submission.
func validateAnswers(questions []model.Question, answers []model.Answer) error {
	byID := make(map[int]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	answered := make(map[int]string, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return &ValidationError{
				QuestionID: a.QuestionID,
				Reason:     "is not part of the form's current version",
			}
		}
		if _, dup := answered[a.QuestionID]; dup {
			return &ValidationError{
				QuestionID: a.QuestionID,
				Reason:     "was answered more than once",
			}
		}
		answered[a.QuestionID] = a.Value

		if strings.TrimSpace(a.Value) == "" {
			// emptiness of required questions is checked below
			continue
		}
		if reason := checkAnswerValue(q, a.Value); reason != "" {
			return &ValidationError{
				QuestionID: a.QuestionID,
				Reason:     fmt.Sprintf("%q %s", q.Prompt, reason),
			}
		}
	}

	missing := []string{}
	for _, q := range questions {
		if !q.Required {
			continue
		}
		if strings.TrimSpace(answered[q.ID]) == "" {
			missing = append(missing, q.Prompt)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Reason: "missing answers for required questions: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

func checkAnswerValue(q model.Question, value string) string {
	switch q.Type {
	case model.Integer:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "must be an integer"
		}
		return checkBounds(q.Metadata, float64(n))

	case model.Decimal:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "must be a number"
		}
		return checkBounds(q.Metadata, n)

	case model.ShortText, model.LongText:
		if q.Metadata == nil || q.Metadata.Pattern == "" {
			return ""
		}
		re, err := regexp.Compile(`^(?:` + q.Metadata.Pattern + `)$`)
		if err != nil {
			return "has an invalid pattern"
		}
		if !re.MatchString(value) {
			return fmt.Sprintf("must match pattern %q", q.Metadata.Pattern)
		}
		return ""

	case model.SingleChoice:
		if !isOption(q.Metadata, value) {
			return fmt.Sprintf("does not allow choice %q", value)
		}
		return ""

	case model.MultipleChoice:
		seen := map[string]bool{}
		for _, item := range strings.Split(value, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if seen[item] {
				return fmt.Sprintf("selects choice %q more than once", item)
			}
			seen[item] = true
			if !isOption(q.Metadata, item) {
				return fmt.Sprintf("does not allow choice %q", item)
			}
		}
		return ""
	}
	return ""
}

func checkBounds(m *model.Metadata, n float64) string {
	if m == nil {
		return ""
	}
	if m.MinValue != nil && n < *m.MinValue {
		return fmt.Sprintf("is below the minimum of %v", *m.MinValue)
	}
	if m.MaxValue != nil && n > *m.MaxValue {
		return fmt.Sprintf("exceeds the maximum of %v", *m.MaxValue)
	}
	return ""
}

func isOption(m *model.Metadata, value string) bool {
	if m == nil {
		return false
	}
	for _, opt := range m.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}
