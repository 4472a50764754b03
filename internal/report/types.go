package report

// Report is the full monthly report: one summary per active question, in
// declared section/question order.
type Report struct {
	Month     string            `json:"month"`
	Questions []QuestionSummary `json:"questions"`
	// Anomalies counts response rows that referenced a question missing from
	// the active set and were excluded.
	Anomalies int `json:"anomalies,omitempty"`
}

type QuestionSummary struct {
	Slug    string `json:"slug"`
	Section string `json:"section"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	// TotalResponses counts distinct sessions that produced any row for this
	// question, including explicit skips. SkippedResponses counts the skips.
	TotalResponses   int     `json:"totalResponses"`
	SkippedResponses int     `json:"skippedResponses"`
	ResponseRate     float64 `json:"responseRate"`

	// Options is ranked by count descending, declared order ascending.
	// DeclaredOrder carries the stable config order for "show all" mode.
	Options       []OptionCount `json:"options,omitempty"`
	DeclaredOrder []string      `json:"declaredOrder,omitempty"`

	WriteIns   []TextCount        `json:"writeIns,omitempty"`
	Experience *ExperienceSummary `json:"experience,omitempty"`
	Numeric    *NumericSummary    `json:"numeric,omitempty"`
	Texts      []TextCount        `json:"texts,omitempty"`
	Comments   []string           `json:"comments,omitempty"`
}

type OptionCount struct {
	Slug    string  `json:"slug"`
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type TextCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// ExperienceSummary carries the cross-tab plus two independent 1-D
// distributions for simpler charting. Percentages use the total number of
// responses to the awareness sub-question as denominator.
type ExperienceSummary struct {
	Awareness []LevelCount `json:"awareness"`
	Sentiment []LevelCount `json:"sentiment"`
	CrossTab  []CrossCell  `json:"crossTab"`
}

type LevelCount struct {
	Level   string  `json:"level"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type CrossCell struct {
	Awareness string `json:"awareness"`
	Sentiment string `json:"sentiment"`
	Count     int    `json:"count"`
}

type NumericSummary struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Histogram []Bin   `json:"histogram,omitempty"`
}

type Bin struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}
