package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"pulse/api/internal/config"
	"pulse/api/internal/confighistory"
	"pulse/api/internal/export"
	"pulse/api/internal/gate"
	"pulse/api/internal/report"
	"pulse/api/internal/search"
	"pulse/api/internal/store"
	"pulse/api/internal/surveyconf"
	"pulse/api/internal/util"
)

type dataStore interface {
	Ping(ctx context.Context) error
	CreateSession(ctx context.Context, id string) error
	SessionExists(ctx context.Context, id string) (bool, error)
	DeleteAllSessions(ctx context.Context) (int64, error)
	ListSections(ctx context.Context, activeOnly bool) ([]store.Section, error)
	ListQuestions(ctx context.Context, activeOnly bool) ([]store.Question, error)
	ListOptions(ctx context.Context, activeOnly bool) ([]store.Option, error)
	SyncSurvey(ctx context.Context, sections []store.Section, questions []store.Question, options []store.Option) (store.SyncSummary, error)
	SaveSubmission(ctx context.Context, sessionID, bucket string, responses []store.Response, allowUpdate bool) error
	HasCompleted(ctx context.Context, sessionID, bucket string) (bool, error)
	ListResponsesForBucket(ctx context.Context, bucket string) ([]store.Response, error)
	EarliestBucket(ctx context.Context) (string, error)
}

// sessionStore holds the opaque respondent tokens. Redis when configured,
// otherwise the Postgres store satisfies the same interface.
type sessionStore interface {
	SaveSessionToken(ctx context.Context, tokenHash, sessionID string, expiresAt time.Time) error
	LookupSessionToken(ctx context.Context, tokenHash string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	gate     *gate.Gate
	search   *search.Service
	history  *confighistory.Service
	exporter *export.Service
	now      func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, accessGate *gate.Gate, searchService *search.Service, history *confighistory.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		gate:     accessGate,
		search:   searchService,
		history:  history,
		exporter: export.NewService(),
		now:      time.Now,
	}
}

// NewWithSessionStore uses a dedicated token store (Redis) instead of the
// Postgres fallback.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, accessGate *gate.Gate, searchService *search.Service, history *confighistory.Service) *Service {
	service := New(cfg, dataStore, accessGate, searchService, history)
	service.sessions = sessions
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap syncs the survey config file on startup. A missing file is an
// error the caller may treat as a warning; an invalid file always is one.
func (s *Service) Bootstrap(ctx context.Context) error {
	data, err := os.ReadFile(s.cfg.SurveyConfigPath)
	if err != nil {
		return fmt.Errorf("read survey config: %w", err)
	}
	summary, err := s.SyncConfig(ctx, data)
	if err != nil {
		return err
	}
	if summary.Empty() {
		log.Printf("app: survey config unchanged")
	} else {
		log.Printf("app: survey config synced: %+v", summary)
	}
	return nil
}

// Sessions / gate

type SessionInfo struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	Period    string `json:"period"`
}

// Login checks the shared access password and issues a fresh anonymous
// session with a server-generated opaque token.
func (s *Service) Login(ctx context.Context, password string) (SessionInfo, error) {
	if !s.gate.Enabled() {
		return SessionInfo{}, domainError(503, "GATE_UNCONFIGURED", "No access password configured", nil)
	}
	if !s.gate.Verify(password) {
		return SessionInfo{}, unauthorizedError("Invalid access password")
	}

	sessionID := util.NewSessionID()
	if err := s.store.CreateSession(ctx, sessionID); err != nil {
		return SessionInfo{}, err
	}

	token := util.NewToken()
	expiresAt := s.now().Add(s.cfg.SessionTTL)
	if err := s.sessions.SaveSessionToken(ctx, hashToken(token), sessionID, expiresAt); err != nil {
		return SessionInfo{}, err
	}

	return SessionInfo{
		Token:     token,
		SessionID: sessionID,
		Period:    gate.CurrentPeriodLabel(s.now()),
	}, nil
}

// SessionFromToken resolves a bearer token to its respondent session id.
func (s *Service) SessionFromToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", unauthorizedError("Missing session token")
	}
	sessionID, err := s.sessions.LookupSessionToken(ctx, hashToken(token))
	if err != nil {
		return "", unauthorizedError("Invalid or expired session token")
	}
	exists, err := s.store.SessionExists(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", unauthorizedError("Session no longer exists")
	}
	return sessionID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Survey view

type SurveyView struct {
	Period           string        `json:"period"`
	AlreadySubmitted bool          `json:"alreadySubmitted"`
	Sections         []SectionView `json:"sections"`
}

type SectionView struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Questions   []QuestionView `json:"questions"`
}

type QuestionView struct {
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        string       `json:"type"`
	Required    bool         `json:"required"`
	Randomize   bool         `json:"randomize"`
	MultipleMax *int         `json:"multipleMax,omitempty"`
	Min         *float64     `json:"min,omitempty"`
	Max         *float64     `json:"max,omitempty"`
	Options     []OptionView `json:"options,omitempty"`
}

type OptionView struct {
	Slug        string `json:"slug"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ActiveSurvey returns the active sections/questions/options for the current
// period plus whether this session already completed it.
func (s *Service) ActiveSurvey(ctx context.Context, sessionID string) (SurveyView, error) {
	sections, err := s.store.ListSections(ctx, true)
	if err != nil {
		return SurveyView{}, err
	}
	if len(sections) == 0 {
		return SurveyView{}, notFoundError("No active survey configured")
	}
	questions, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return SurveyView{}, err
	}
	options, err := s.store.ListOptions(ctx, true)
	if err != nil {
		return SurveyView{}, err
	}

	period := gate.CurrentPeriodLabel(s.now())
	completed, err := s.store.HasCompleted(ctx, sessionID, period)
	if err != nil {
		return SurveyView{}, err
	}

	optionsByQuestion := make(map[string][]OptionView)
	for _, opt := range options {
		optionsByQuestion[opt.QuestionSlug] = append(optionsByQuestion[opt.QuestionSlug], OptionView{
			Slug:        opt.Slug,
			Label:       opt.Label,
			Description: opt.Description,
		})
	}

	questionsBySection := make(map[string][]QuestionView)
	for _, q := range questions {
		questionsBySection[q.SectionSlug] = append(questionsBySection[q.SectionSlug], QuestionView{
			Slug:        q.Slug,
			Title:       q.Title,
			Description: q.Description,
			Type:        q.Type,
			Required:    q.Required,
			Randomize:   q.Randomize,
			MultipleMax: q.MultipleMax,
			Min:         q.MinValue,
			Max:         q.MaxValue,
			Options:     optionsByQuestion[q.Slug],
		})
	}

	view := SurveyView{Period: period, AlreadySubmitted: completed}
	for _, sec := range sections {
		view.Sections = append(view.Sections, SectionView{
			Slug:        sec.Slug,
			Title:       sec.Title,
			Description: sec.Description,
			Questions:   questionsBySection[sec.Slug],
		})
	}
	return view, nil
}

// Submission

type ExperienceInput struct {
	Awareness string `json:"awareness"`
	Sentiment string `json:"sentiment,omitempty"`
}

type AnswerInput struct {
	QuestionSlug string           `json:"questionSlug"`
	OptionSlug   string           `json:"optionSlug,omitempty"`
	OptionSlugs  []string         `json:"optionSlugs,omitempty"`
	TextValue    string           `json:"textValue,omitempty"`
	NumericValue *float64         `json:"numericValue,omitempty"`
	Experience   *ExperienceInput `json:"experience,omitempty"`
	Comment      string           `json:"comment,omitempty"`
	Skipped      bool             `json:"skipped,omitempty"`
}

type SubmitInput struct {
	Answers []AnswerInput `json:"answers"`
	// Update allows a session to revise its answers before the bucket rolls
	// over; without it a second submission is a conflict.
	Update bool `json:"update,omitempty"`
}

// Submit validates and persists one answer set for the current month.
func (s *Service) Submit(ctx context.Context, sessionID string, input SubmitInput) error {
	questions, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return notFoundError("No active survey configured")
	}
	options, err := s.store.ListOptions(ctx, true)
	if err != nil {
		return err
	}

	bucket := gate.CurrentPeriodLabel(s.now())
	rows, err := buildResponseRows(sessionID, bucket, questions, options, input.Answers)
	if err != nil {
		return err
	}

	if err := s.store.SaveSubmission(ctx, sessionID, bucket, rows, input.Update); err != nil {
		if errors.Is(err, store.ErrAlreadySubmitted) {
			return conflictError("This session already submitted for " + bucket)
		}
		return err
	}

	if s.search != nil {
		s.search.Index(searchRecords(sessionID, bucket, rows))
	}
	return nil
}

// buildResponseRows validates every answer against its question's type and
// flattens the set into store rows. It fails on the first violation so the
// caller gets a precise error naming the question.
func buildResponseRows(sessionID, bucket string, questions []store.Question, options []store.Option, answers []AnswerInput) ([]store.Response, error) {
	questionBySlug := make(map[string]store.Question, len(questions))
	for _, q := range questions {
		questionBySlug[q.Slug] = q
	}
	optionSet := make(map[string]map[string]bool)
	for _, opt := range options {
		if optionSet[opt.QuestionSlug] == nil {
			optionSet[opt.QuestionSlug] = make(map[string]bool)
		}
		optionSet[opt.QuestionSlug][opt.Slug] = true
	}

	answered := make(map[string]bool, len(answers))
	var rows []store.Response
	for _, answer := range answers {
		q, ok := questionBySlug[answer.QuestionSlug]
		if !ok {
			return nil, validationError("Unknown or inactive question", map[string]string{"question": answer.QuestionSlug})
		}
		if answered[q.Slug] {
			return nil, validationError("Duplicate answer for question", map[string]string{"question": q.Slug})
		}
		answered[q.Slug] = true

		questionRows, err := answerRows(sessionID, bucket, q, optionSet[q.Slug], answer)
		if err != nil {
			return nil, err
		}
		rows = append(rows, questionRows...)
	}

	for _, q := range questions {
		if q.Required && !answered[q.Slug] {
			return nil, validationError("Required question not answered", map[string]string{"question": q.Slug})
		}
	}
	return rows, nil
}

func answerRows(sessionID, bucket string, q store.Question, validOptions map[string]bool, answer AnswerInput) ([]store.Response, error) {
	base := store.Response{
		SessionID:    sessionID,
		MonthBucket:  bucket,
		QuestionSlug: q.Slug,
	}
	if comment := strings.TrimSpace(answer.Comment); comment != "" {
		base.Comment = &comment
	}

	// An explicit skip records a row with all value columns null, so
	// "declined to answer" stays distinguishable from "never reached".
	if answer.Skipped {
		row := base
		row.Skipped = true
		return []store.Response{row}, nil
	}

	detail := map[string]string{"question": q.Slug}

	switch q.Type {
	case store.TypeSingle, store.TypeSingleFreeform:
		if answer.OptionSlug == "" {
			return nil, validationError("Single-choice answer needs an option", detail)
		}
		if !validOptions[answer.OptionSlug] {
			return nil, validationError("Unknown option for question", map[string]string{"question": q.Slug, "option": answer.OptionSlug})
		}
		row := base
		row.OptionSlug = answer.OptionSlug
		if text := strings.TrimSpace(answer.TextValue); text != "" {
			if q.Type != store.TypeSingleFreeform {
				return nil, validationError("Write-in text is only valid on freeform variants", detail)
			}
			row.TextValue = &text
		}
		return []store.Response{row}, nil

	case store.TypeMultiple, store.TypeMultipleFreeform:
		if len(answer.OptionSlugs) == 0 {
			return nil, validationError("Multiple-choice answer needs at least one option", detail)
		}
		if q.MultipleMax != nil && len(answer.OptionSlugs) > *q.MultipleMax {
			return nil, validationError(fmt.Sprintf("At most %d options may be selected", *q.MultipleMax), detail)
		}
		seen := make(map[string]bool, len(answer.OptionSlugs))
		var rows []store.Response
		for i, slug := range answer.OptionSlugs {
			if seen[slug] {
				return nil, validationError("Option selected twice", map[string]string{"question": q.Slug, "option": slug})
			}
			seen[slug] = true
			if !validOptions[slug] {
				return nil, validationError("Unknown option for question", map[string]string{"question": q.Slug, "option": slug})
			}
			row := base
			row.OptionSlug = slug
			if i > 0 {
				// Comment and write-in ride on the first row only; the
				// aggregation reads them per question, not per option.
				row.Comment = nil
			}
			if i == 0 {
				if text := strings.TrimSpace(answer.TextValue); text != "" {
					if q.Type != store.TypeMultipleFreeform {
						return nil, validationError("Write-in text is only valid on freeform variants", detail)
					}
					row.TextValue = &text
				}
			}
			rows = append(rows, row)
		}
		return rows, nil

	case store.TypeExperience:
		if answer.Experience == nil {
			return nil, validationError("Experience answer needs an awareness level", detail)
		}
		if !validAwareness(answer.Experience.Awareness) {
			return nil, validationError("Unknown awareness level", map[string]string{"question": q.Slug, "awareness": answer.Experience.Awareness})
		}
		row := base
		awareness := answer.Experience.Awareness
		row.Awareness = &awareness
		if answer.Experience.Sentiment != "" {
			if awareness == store.AwarenessNeverHeard {
				return nil, validationError("Sentiment requires prior exposure", detail)
			}
			if !validSentiment(answer.Experience.Sentiment) {
				return nil, validationError("Unknown sentiment", map[string]string{"question": q.Slug, "sentiment": answer.Experience.Sentiment})
			}
			sentiment := answer.Experience.Sentiment
			row.Sentiment = &sentiment
		}
		return []store.Response{row}, nil

	case store.TypeNumeric:
		if answer.NumericValue == nil {
			return nil, validationError("Numeric answer needs a value", detail)
		}
		value := *answer.NumericValue
		if q.MinValue != nil && value < *q.MinValue {
			return nil, validationError(fmt.Sprintf("Value below minimum %v", *q.MinValue), detail)
		}
		if q.MaxValue != nil && value > *q.MaxValue {
			return nil, validationError(fmt.Sprintf("Value above maximum %v", *q.MaxValue), detail)
		}
		row := base
		row.NumericValue = &value
		return []store.Response{row}, nil

	case store.TypeFreeform:
		text := strings.TrimSpace(answer.TextValue)
		if text == "" {
			return nil, validationError("Freeform answer needs text", detail)
		}
		row := base
		row.TextValue = &text
		return []store.Response{row}, nil
	}

	return nil, validationError("Unknown question type", detail)
}

func validAwareness(level string) bool {
	switch level {
	case store.AwarenessNeverHeard, store.AwarenessHeard, store.AwarenessUsedBefore, store.AwarenessUsing:
		return true
	}
	return false
}

func validSentiment(level string) bool {
	switch level {
	case store.SentimentNegative, store.SentimentNeutral, store.SentimentPositive:
		return true
	}
	return false
}

// searchRecords extracts the freeform text units from a submission for
// indexing. IDs are deterministic so a resubmit overwrites earlier entries.
func searchRecords(sessionID, bucket string, rows []store.Response) []search.Record {
	var records []search.Record
	add := func(questionSlug string, kind search.Kind, text string) {
		records = append(records, search.Record{
			ID:           recordID(sessionID, bucket, questionSlug, kind),
			QuestionSlug: questionSlug,
			Month:        bucket,
			Kind:         kind,
			Text:         text,
		})
	}
	for _, row := range rows {
		if row.Skipped {
			continue
		}
		if row.TextValue != nil {
			if row.OptionSlug != "" {
				add(row.QuestionSlug, search.KindWriteIn, *row.TextValue)
			} else {
				add(row.QuestionSlug, search.KindAnswer, *row.TextValue)
			}
		}
		if row.Comment != nil {
			add(row.QuestionSlug, search.KindComment, *row.Comment)
		}
	}
	return records
}

func recordID(sessionID, bucket, questionSlug string, kind search.Kind) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + bucket + "|" + questionSlug + "|" + string(kind)))
	return hex.EncodeToString(sum[:16])
}

// Reporting

// BuildReport aggregates the selected month. Months with no data return
// zero-filled summaries.
func (s *Service) BuildReport(ctx context.Context, month report.Month) (report.Report, error) {
	questions, err := s.store.ListQuestions(ctx, true)
	if err != nil {
		return report.Report{}, err
	}
	options, err := s.store.ListOptions(ctx, true)
	if err != nil {
		return report.Report{}, err
	}
	rows, err := s.store.ListResponsesForBucket(ctx, month.String())
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(month, questions, options, rows), nil
}

// ReportMonths returns the selectable months, earliest recorded response
// through the current month.
func (s *Service) ReportMonths(ctx context.Context) ([]string, error) {
	current := report.CurrentMonth(s.now())
	earliest, err := s.store.EarliestBucket(ctx)
	if err != nil {
		return nil, err
	}
	if earliest == "" {
		return []string{current.String()}, nil
	}

	m, err := report.ParseMonth(earliest)
	if err != nil {
		log.Printf("app: malformed earliest bucket %q: %v", earliest, err)
		return []string{current.String()}, nil
	}

	var months []string
	for !current.Before(m) {
		months = append(months, m.String())
		m = m.Next()
	}
	return months, nil
}

func (s *Service) ExportReport(ctx context.Context, month report.Month, format export.Format) (*export.Result, error) {
	rep, err := s.BuildReport(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(rep, format)
}

func (s *Service) SearchFreeform(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Admin

// SyncConfig parses, validates, and applies a survey document, then records
// it in the config history when anything changed.
func (s *Service) SyncConfig(ctx context.Context, doc []byte) (store.SyncSummary, error) {
	parsed, err := surveyconf.Parse(doc)
	if err != nil {
		return store.SyncSummary{}, validationError(err.Error(), nil)
	}

	sections, questions, options := parsed.Rows()
	summary, err := s.store.SyncSurvey(ctx, sections, questions, options)
	if err != nil {
		return store.SyncSummary{}, err
	}

	if s.history != nil && !summary.Empty() {
		message := fmt.Sprintf("sync: %d sections, %d questions, %d options changed; %d/%d/%d deactivated",
			summary.SectionsChanged, summary.QuestionsChanged, summary.OptionsChanged,
			summary.SectionsDeactivated, summary.QuestionsDeactivated, summary.OptionsDeactivated)
		if _, err := s.history.Record(doc, message); err != nil {
			log.Printf("app: config history record failed: %v", err)
		}
	}
	return summary, nil
}

func (s *Service) ConfigHistory() ([]confighistory.Commit, error) {
	if s.history == nil {
		return []confighistory.Commit{}, nil
	}
	return s.history.List()
}

// ClearSessions wipes all respondent sessions and, via cascade, their
// responses. Admin-only.
func (s *Service) ClearSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteAllSessions(ctx)
}
