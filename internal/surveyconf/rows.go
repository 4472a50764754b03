package surveyconf

import "pulse/api/internal/store"

// OptionSlug namespaces an option slug under its question so option slugs are
// globally unique in the options table.
func OptionSlug(questionSlug, optionSlug string) string {
	return questionSlug + "_" + optionSlug
}

// Rows flattens the document into store rows with declaration order as sort
// order. Validation is assumed to have passed.
func (d *Document) Rows() (sections []store.Section, questions []store.Question, options []store.Option) {
	for i, sec := range d.Sections {
		sections = append(sections, store.Section{
			Slug:        sec.Slug,
			Title:       sec.Title,
			Description: sec.Description,
			SortOrder:   i,
			Active:      true,
		})
	}

	for i, q := range d.Questions {
		questions = append(questions, store.Question{
			Slug:        q.Slug,
			SectionSlug: q.Section,
			Title:       q.Title,
			Description: q.Description,
			Type:        q.Type,
			Required:    q.Required,
			Randomize:   q.Randomize,
			MultipleMax: q.MultipleMax,
			MinValue:    q.Min,
			MaxValue:    q.Max,
			SortOrder:   i,
			Active:      true,
		})
		for j, opt := range q.Options {
			options = append(options, store.Option{
				Slug:         OptionSlug(q.Slug, opt.Slug),
				QuestionSlug: q.Slug,
				Label:        opt.Label,
				Description:  opt.Description,
				SortOrder:    j,
				Active:       true,
			})
		}
	}
	return sections, questions, options
}
