package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"pulse/api/internal/config"
	"pulse/api/internal/report"
	"pulse/api/internal/store"
	"pulse/api/internal/surveyconf"
	"pulse/api/internal/util"
)

// Seeds the database with the survey config plus a few months of synthetic
// responses, for local development and report screenshots.
func main() {
	sessions := flag.Int("sessions", 25, "respondent sessions per month")
	months := flag.Int("months", 3, "months of history to generate, ending with the current one")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	data, err := os.ReadFile(cfg.SurveyConfigPath)
	if err != nil {
		log.Fatalf("read survey config: %v", err)
	}
	doc, err := surveyconf.Parse(data)
	if err != nil {
		log.Fatalf("invalid survey config: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	secRows, qRows, optRows := doc.Rows()
	if _, err := dataStore.SyncSurvey(ctx, secRows, qRows, optRows); err != nil {
		log.Fatalf("sync survey config: %v", err)
	}

	optionsByQuestion := make(map[string][]string)
	for _, opt := range optRows {
		optionsByQuestion[opt.QuestionSlug] = append(optionsByQuestion[opt.QuestionSlug], opt.Slug)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	buckets := recentBuckets(*months)
	total := 0
	for _, bucket := range buckets {
		for i := 0; i < *sessions; i++ {
			sessionID := util.NewSessionID()
			if err := dataStore.CreateSession(ctx, sessionID); err != nil {
				log.Fatalf("create session: %v", err)
			}
			rows := syntheticRows(rng, sessionID, bucket, qRows, optionsByQuestion)
			if err := dataStore.SaveSubmission(ctx, sessionID, bucket, rows, false); err != nil {
				log.Fatalf("save submission: %v", err)
			}
			total++
		}
	}

	fmt.Printf("Seeded %d submissions across %d months\n", total, len(buckets))
}

func recentBuckets(n int) []string {
	current := report.CurrentMonth(time.Now())
	buckets := make([]string, 0, n)
	month := current
	for i := 0; i < n; i++ {
		buckets = append(buckets, month.String())
		month = month.Prev()
	}
	return buckets
}

var sampleTexts = []string{
	"Waiting on CI",
	"Too many meetings",
	"Flaky staging environment",
	"Slow code review turnaround",
	"Context switching between projects",
}

func syntheticRows(rng *rand.Rand, sessionID, bucket string, questions []store.Question, optionsByQuestion map[string][]string) []store.Response {
	var rows []store.Response
	base := func(q store.Question) store.Response {
		return store.Response{SessionID: sessionID, MonthBucket: bucket, QuestionSlug: q.Slug}
	}

	for _, q := range questions {
		// Optional questions get skipped some of the time.
		if !q.Required && rng.Intn(100) < 20 {
			row := base(q)
			row.Skipped = true
			rows = append(rows, row)
			continue
		}

		opts := optionsByQuestion[q.Slug]
		switch q.Type {
		case store.TypeSingle, store.TypeSingleFreeform:
			row := base(q)
			row.OptionSlug = opts[rng.Intn(len(opts))]
			rows = append(rows, row)

		case store.TypeMultiple, store.TypeMultipleFreeform:
			count := 1 + rng.Intn(min(len(opts), 3))
			picked := rng.Perm(len(opts))[:count]
			for _, idx := range picked {
				row := base(q)
				row.OptionSlug = opts[idx]
				rows = append(rows, row)
			}

		case store.TypeExperience:
			levels := []string{store.AwarenessNeverHeard, store.AwarenessHeard, store.AwarenessUsedBefore, store.AwarenessUsing}
			awareness := levels[rng.Intn(len(levels))]
			row := base(q)
			row.Awareness = &awareness
			if awareness != store.AwarenessNeverHeard {
				sentiments := []string{store.SentimentNegative, store.SentimentNeutral, store.SentimentPositive}
				sentiment := sentiments[rng.Intn(len(sentiments))]
				row.Sentiment = &sentiment
			}
			rows = append(rows, row)

		case store.TypeNumeric:
			lo, hi := 0.0, 10.0
			if q.MinValue != nil {
				lo = *q.MinValue
			}
			if q.MaxValue != nil {
				hi = *q.MaxValue
			}
			value := lo + rng.Float64()*(hi-lo)
			row := base(q)
			row.NumericValue = &value
			rows = append(rows, row)

		case store.TypeFreeform:
			text := sampleTexts[rng.Intn(len(sampleTexts))]
			row := base(q)
			row.TextValue = &text
			rows = append(rows, row)
		}
	}
	return rows
}
