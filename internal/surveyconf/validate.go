package surveyconf

import (
	"fmt"
	"regexp"
	"strings"

	"pulse/api/internal/store"
)

var validTypes = map[string]bool{
	store.TypeSingle:           true,
	store.TypeMultiple:         true,
	store.TypeExperience:       true,
	store.TypeNumeric:          true,
	store.TypeSingleFreeform:   true,
	store.TypeMultipleFreeform: true,
	store.TypeFreeform:         true,
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func optionTyped(qtype string) bool {
	switch qtype {
	case store.TypeSingle, store.TypeMultiple, store.TypeSingleFreeform, store.TypeMultipleFreeform:
		return true
	}
	return false
}

func multipleTyped(qtype string) bool {
	return qtype == store.TypeMultiple || qtype == store.TypeMultipleFreeform
}

// Validate checks the whole document before any database write: section
// references, slug shape and uniqueness (sections and questions globally,
// options per question), and type-specific fields on the right types only.
func (d *Document) Validate() error {
	if len(d.Sections) == 0 {
		return fmt.Errorf("survey config declares no sections")
	}

	sectionSlugs := make(map[string]bool, len(d.Sections))
	for _, sec := range d.Sections {
		if err := checkSlug("section", sec.Slug); err != nil {
			return err
		}
		if sectionSlugs[sec.Slug] {
			return fmt.Errorf("duplicate section slug %q", sec.Slug)
		}
		sectionSlugs[sec.Slug] = true
		if strings.TrimSpace(sec.Title) == "" {
			return fmt.Errorf("section %q has no title", sec.Slug)
		}
	}

	questionSlugs := make(map[string]bool, len(d.Questions))
	for _, q := range d.Questions {
		if err := checkSlug("question", q.Slug); err != nil {
			return err
		}
		if questionSlugs[q.Slug] {
			return fmt.Errorf("duplicate question slug %q", q.Slug)
		}
		questionSlugs[q.Slug] = true

		if !sectionSlugs[q.Section] {
			return fmt.Errorf("question %q references undeclared section %q", q.Slug, q.Section)
		}
		if !validTypes[q.Type] {
			return fmt.Errorf("question %q has unknown type %q", q.Slug, q.Type)
		}
		if strings.TrimSpace(q.Title) == "" {
			return fmt.Errorf("question %q has no title", q.Slug)
		}

		if q.MultipleMax != nil {
			if !multipleTyped(q.Type) {
				return fmt.Errorf("question %q: multiple_max is only valid on multiple types", q.Slug)
			}
			if *q.MultipleMax < 1 {
				return fmt.Errorf("question %q: multiple_max must be positive", q.Slug)
			}
		}
		if (q.Min != nil || q.Max != nil) && q.Type != store.TypeNumeric {
			return fmt.Errorf("question %q: min/max bounds are only valid on numeric questions", q.Slug)
		}
		if q.Min != nil && q.Max != nil && *q.Min >= *q.Max {
			return fmt.Errorf("question %q: min must be below max", q.Slug)
		}

		if optionTyped(q.Type) {
			if len(q.Options) == 0 {
				return fmt.Errorf("question %q of type %q declares no options", q.Slug, q.Type)
			}
		} else if len(q.Options) > 0 {
			return fmt.Errorf("question %q of type %q must not declare options", q.Slug, q.Type)
		}

		optionSlugs := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if err := checkSlug("option", opt.Slug); err != nil {
				return fmt.Errorf("question %q: %w", q.Slug, err)
			}
			if optionSlugs[opt.Slug] {
				return fmt.Errorf("question %q has duplicate option slug %q", q.Slug, opt.Slug)
			}
			optionSlugs[opt.Slug] = true
			if strings.TrimSpace(opt.Label) == "" {
				return fmt.Errorf("question %q option %q has no label", q.Slug, opt.Slug)
			}
		}
	}

	return nil
}

func checkSlug(kind, slug string) error {
	if slug == "" {
		return fmt.Errorf("%s with empty slug", kind)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%s slug %q is not lowercase-kebab", kind, slug)
	}
	return nil
}
