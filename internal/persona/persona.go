// Package persona loads the character record and renders it into the
// preamble sent as the system instruction on every chat turn.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Persona is the structured character record. Field names follow the
// character-file JSON layout.
type Persona struct {
	Name            string      `json:"name,omitempty"`
	Bio             []string    `json:"bio"`
	Lore            []string    `json:"lore"`
	Adjectives      []string    `json:"adjectives"`
	Topics          []string    `json:"topics"`
	Style           *Style      `json:"style"`
	MessageExamples [][]Message `json:"messageExamples"`
	PostExamples    []string    `json:"postExamples"`
}

// Style groups the three style-guidance sequences.
type Style struct {
	All  []string `json:"all"`
	Chat []string `json:"chat"`
	Post []string `json:"post"`
}

// Message is one speaker/text pair of an example conversation.
type Message struct {
	User    string  `json:"user"`
	Content Content `json:"content"`
}

// Content is the payload of an example message.
type Content struct {
	Text string `json:"text"`
}

// Load reads and validates the persona record at path.
func Load(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a persona record.
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate reports every required field that is absent. Empty sequences
// are allowed; only a missing (null) field is an error.
func (p *Persona) Validate() error {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}

	check("bio", p.Bio != nil)
	check("lore", p.Lore != nil)
	check("adjectives", p.Adjectives != nil)
	check("topics", p.Topics != nil)
	check("style", p.Style != nil)
	if p.Style != nil {
		check("style.all", p.Style.All != nil)
		check("style.chat", p.Style.Chat != nil)
		check("style.post", p.Style.Post != nil)
	}
	check("messageExamples", p.MessageExamples != nil)
	check("postExamples", p.PostExamples != nil)

	if len(missing) > 0 {
		return fmt.Errorf("persona missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
