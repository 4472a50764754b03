// Package surveyconf parses and validates the declarative survey document
// and turns it into store rows for the config sync.
package surveyconf

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the declarative survey definition. Slugs are stable natural
// keys: the sync upserts by slug and deactivates anything absent.
type Document struct {
	Sections  []SectionDoc  `yaml:"sections"`
	Questions []QuestionDoc `yaml:"questions"`
}

type SectionDoc struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type QuestionDoc struct {
	Slug        string      `yaml:"slug"`
	Section     string      `yaml:"section"`
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Type        string      `yaml:"type"`
	Required    bool        `yaml:"required"`
	Randomize   bool        `yaml:"randomize"`
	MultipleMax *int        `yaml:"multiple_max"`
	Min         *float64    `yaml:"min"`
	Max         *float64    `yaml:"max"`
	Options     []OptionDoc `yaml:"options"`
}

type OptionDoc struct {
	Slug        string `yaml:"slug"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

// Parse unmarshals and validates a survey document. A document that fails
// validation is rejected whole; the sync never sees it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse survey config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
