package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberti/formdesk/model"
)

func TestCheckAnswerValue(t *testing.T) {
	tests := []struct {
		name     string
		question model.Question
		value    string
		reason   string
	}{
		{
			name:     "integer in range",
			question: model.Question{Type: model.Integer, Metadata: &model.Metadata{MinValue: fptr(0), MaxValue: fptr(24)}},
			value:    "7",
		},
		{
			name:     "integer above maximum",
			question: model.Question{Type: model.Integer, Metadata: &model.Metadata{MinValue: fptr(0), MaxValue: fptr(24)}},
			value:    "25",
			reason:   "exceeds the maximum of 24",
		},
		{
			name:     "integer below minimum",
			question: model.Question{Type: model.Integer, Metadata: &model.Metadata{MinValue: fptr(0), MaxValue: fptr(24)}},
			value:    "-1",
			reason:   "is below the minimum of 0",
		},
		{
			name:     "integer not a number",
			question: model.Question{Type: model.Integer},
			value:    "seven",
			reason:   "must be an integer",
		},
		{
			name:     "integer rejects fraction",
			question: model.Question{Type: model.Integer},
			value:    "7.5",
			reason:   "must be an integer",
		},
		{
			name:     "decimal accepts fraction",
			question: model.Question{Type: model.Decimal, Metadata: &model.Metadata{MaxValue: fptr(10)}},
			value:    "7.5",
		},
		{
			name:     "decimal not a number",
			question: model.Question{Type: model.Decimal},
			value:    "many",
			reason:   "must be a number",
		},
		{
			name:     "text without pattern",
			question: model.Question{Type: model.ShortText},
			value:    "anything goes",
		},
		{
			name:     "text matching pattern in full",
			question: model.Question{Type: model.ShortText, Metadata: &model.Metadata{Pattern: `[A-Z]{2}\d{4}`}},
			value:    "AB1234",
		},
		{
			name:     "text matching pattern only partially",
			question: model.Question{Type: model.ShortText, Metadata: &model.Metadata{Pattern: `[A-Z]{2}\d{4}`}},
			value:    "xxAB1234",
			reason:   "must match pattern",
		},
		{
			name:     "single choice valid option",
			question: model.Question{Type: model.SingleChoice, Metadata: contactOptions()},
			value:    "email",
		},
		{
			name:     "single choice unknown option",
			question: model.Question{Type: model.SingleChoice, Metadata: contactOptions()},
			value:    "fax",
			reason:   `does not allow choice "fax"`,
		},
		{
			name:     "multiple choice valid set",
			question: model.Question{Type: model.MultipleChoice, Metadata: contactOptions()},
			value:    "email, sms",
		},
		{
			name:     "multiple choice unknown member",
			question: model.Question{Type: model.MultipleChoice, Metadata: contactOptions()},
			value:    "email,fax",
			reason:   `does not allow choice "fax"`,
		},
		{
			name:     "multiple choice duplicate member",
			question: model.Question{Type: model.MultipleChoice, Metadata: contactOptions()},
			value:    "email,email",
			reason:   `selects choice "email" more than once`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := checkAnswerValue(tt.question, tt.value)
			if tt.reason == "" {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, tt.reason)
			}
		})
	}
}

func TestValidateAnswersRequiredCompleteness(t *testing.T) {
	questions := []model.Question{
		{ID: 11, Prompt: "Contact channel", Type: model.SingleChoice, Required: true, Metadata: contactOptions()},
		{ID: 12, Prompt: "Notes", Type: model.LongText},
	}

	err := validateAnswers(questions, []model.Answer{{QuestionID: 12, Value: "hi"}})

	verr := &ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "missing answers for required questions")
	assert.Contains(t, verr.Reason, "Contact channel")
}

func TestValidateAnswersBlankValueDoesNotSatisfyRequired(t *testing.T) {
	questions := []model.Question{
		{ID: 11, Prompt: "Contact channel", Type: model.SingleChoice, Required: true, Metadata: contactOptions()},
	}

	err := validateAnswers(questions, []model.Answer{{QuestionID: 11, Value: "   "}})

	verr := &ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "missing answers for required questions")
}

func TestValidateAnswersRejectsUnknownQuestion(t *testing.T) {
	questions := []model.Question{
		{ID: 11, Prompt: "Notes", Type: model.LongText},
	}

	err := validateAnswers(questions, []model.Answer{
		{QuestionID: 11, Value: "fine"},
		{QuestionID: 99, Value: "stray"},
	})

	verr := &ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 99, verr.QuestionID)
}

func TestValidateAnswersRejectsDuplicateAnswer(t *testing.T) {
	questions := []model.Question{
		{ID: 11, Prompt: "Notes", Type: model.LongText},
	}

	err := validateAnswers(questions, []model.Answer{
		{QuestionID: 11, Value: "first"},
		{QuestionID: 11, Value: "second"},
	})

	verr := &ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 11, verr.QuestionID)
	assert.Contains(t, verr.Reason, "more than once")
}
