package model

import "time"

type QuestionType string

const (
	ShortText      QuestionType = "short_text"
	LongText       QuestionType = "long_text"
	Integer        QuestionType = "integer"
	Decimal        QuestionType = "decimal"
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Metadata carries the type-dependent constraints of a question.
// Which fields are admissible depends on the question type; placeholder
// is allowed everywhere.
type Metadata struct {
	MinValue    *float64 `json:"min_value,omitempty"`
	MaxValue    *float64 `json:"max_value,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

type Question struct {
	ID       int          `json:"id,omitempty"`
	Prompt   string       `json:"prompt" validate:"required"`
	Type     QuestionType `json:"type" validate:"required"`
	Position int          `json:"position"`
	Required bool         `json:"required"`
	Metadata *Metadata    `json:"metadata,omitempty"`
}

type Form struct {
	ID          int        `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	Questions   []Question `json:"questions,omitempty"`
}

// Version is an immutable snapshot of a form's question set.
type Version struct {
	ID          int        `json:"id"`
	Version     int        `json:"version"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	Questions   []Question `json:"questions"`
}

type Answer struct {
	ID         int    `json:"id,omitempty"`
	QuestionID int    `json:"question_id"`
	Value      string `json:"value"`
}

// Response is bound to the version that was current at submission time,
// not to whatever version the form has later.
type Response struct {
	ID          int        `json:"id"`
	FormID      int        `json:"form_id"`
	Version     int        `json:"version"`
	Respondent  string     `json:"respondent_identifier,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	Answers     []Answer   `json:"answers"`
}
