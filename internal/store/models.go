package store

import "time"

// Question type tags, as stored in survey_questions.qtype.
const (
	TypeSingle           = "single"
	TypeMultiple         = "multiple"
	TypeExperience       = "experience"
	TypeNumeric          = "numeric"
	TypeSingleFreeform   = "single-freeform"
	TypeMultipleFreeform = "multiple-freeform"
	TypeFreeform         = "freeform"
)

// Awareness levels for experience questions, ordinal from no exposure to
// active use.
const (
	AwarenessNeverHeard = "never-heard"
	AwarenessHeard      = "heard"
	AwarenessUsedBefore = "used-before"
	AwarenessUsing      = "using"
)

const (
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

type RespondentSession struct {
	ID        string
	CreatedAt time.Time
}

type Section struct {
	Slug        string
	Title       string
	Description string
	SortOrder   int
	Active      bool
	AddedAt     time.Time
	UpdatedAt   time.Time
}

type Question struct {
	Slug        string
	SectionSlug string
	Title       string
	Description string
	Type        string
	Required    bool
	Randomize   bool
	MultipleMax *int
	MinValue    *float64
	MaxValue    *float64
	SortOrder   int
	Active      bool
	AddedAt     time.Time
	UpdatedAt   time.Time
}

// Option slug is globally unique because it is stored namespaced as
// {question_slug}_{option_slug}.
type Option struct {
	Slug         string
	QuestionSlug string
	Label        string
	Description  string
	SortOrder    int
	Active       bool
}

// Response is one answer unit: one row per (session, bucket, question,
// option), with option_slug = "" for types that carry no option reference.
// Exactly one value shape is populated, matching the question type, unless
// Skipped is set.
type Response struct {
	SessionID    string
	MonthBucket  string
	QuestionSlug string
	OptionSlug   string
	TextValue    *string
	NumericValue *float64
	Awareness    *string
	Sentiment    *string
	Comment      *string
	Skipped      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Completion struct {
	SessionID   string
	MonthBucket string
	CompletedAt time.Time
}

// SyncSummary reports what a config sync actually changed. An idempotent
// re-run of the same document reports zeroes everywhere.
type SyncSummary struct {
	SectionsChanged      int `json:"sectionsChanged"`
	QuestionsChanged     int `json:"questionsChanged"`
	OptionsChanged       int `json:"optionsChanged"`
	SectionsDeactivated  int `json:"sectionsDeactivated"`
	QuestionsDeactivated int `json:"questionsDeactivated"`
	OptionsDeactivated   int `json:"optionsDeactivated"`
}

func (s SyncSummary) Empty() bool {
	return s == SyncSummary{}
}
