// Package card models character profiles and normalizes the two supported
// card shapes into one internal form. Shape resolution happens exactly once,
// at Decode; nothing deeper in lorekit branches on card shape.
package card

import (
	"encoding/json"
	"errors"
	"fmt"

	"lorekit/internal/lore"
)

// Spec identifies the card shape a profile was decoded from.
type Spec string

const (
	// SpecV1 is the legacy flat card: top-level fields, no wrapper.
	SpecV1 Spec = "v1"
	// SpecV2 is the tagged wrapper: {"spec":"chara_card_v2","data":{...}}.
	SpecV2 Spec = "chara_card_v2"
)

// ErrInvalidProfile reports a card whose required fields cannot be found.
var ErrInvalidProfile = errors.New("invalid profile")

// ErrInvalidBook reports a standalone lorebook that fails to parse or
// validate.
var ErrInvalidBook = errors.New("invalid lorebook")

// Canonical field names, in extraction order.
const (
	FieldName            = "name"
	FieldDescription     = "description"
	FieldPersonality     = "personality"
	FieldScenario        = "scenario"
	FieldGreeting        = "greeting"
	FieldExampleDialogue = "example_dialogue"
)

// fieldOrder is the canonical extraction order. Every profile exposes all of
// these; absent text is a zero-length field, never an omission, so budgeting
// downstream always sees a stable field set.
var fieldOrder = []string{
	FieldName,
	FieldDescription,
	FieldPersonality,
	FieldScenario,
	FieldGreeting,
	FieldExampleDialogue,
}

// FieldOrder returns the canonical extraction order.
func FieldOrder() []string {
	out := make([]string, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Field is one named text field in extraction order.
type Field struct {
	Name string
	Text string
}

// Profile is the normalized character profile. Values are immutable after
// Decode; edits go through WithField, which copies.
type Profile struct {
	spec        Spec
	specVersion string

	name            string
	description     string
	personality     string
	scenario        string
	greeting        string
	exampleDialogue string

	alternateGreetings []string
	book               *lore.Book
}

// Spec reports which card shape the profile was decoded from.
func (p *Profile) Spec() Spec { return p.spec }

// Name returns the character name.
func (p *Profile) Name() string { return p.name }

// Greeting returns the primary greeting text. It serves as the default
// activation probe when the caller supplies no input.
func (p *Profile) Greeting() string { return p.greeting }

// AlternateGreetings returns any additional greetings (V2 cards only).
func (p *Profile) AlternateGreetings() []string {
	out := make([]string, len(p.alternateGreetings))
	copy(out, p.alternateGreetings)
	return out
}

// Book returns the embedded lorebook, or nil when the card carries none.
func (p *Profile) Book() *lore.Book { return p.book }

// Fields returns the ordered list of named text fields.
func (p *Profile) Fields() []Field {
	return []Field{
		{FieldName, p.name},
		{FieldDescription, p.description},
		{FieldPersonality, p.personality},
		{FieldScenario, p.scenario},
		{FieldGreeting, p.greeting},
		{FieldExampleDialogue, p.exampleDialogue},
	}
}

// FieldText returns one field's text by canonical name.
func (p *Profile) FieldText(name string) (string, error) {
	switch name {
	case FieldName:
		return p.name, nil
	case FieldDescription:
		return p.description, nil
	case FieldPersonality:
		return p.personality, nil
	case FieldScenario:
		return p.scenario, nil
	case FieldGreeting:
		return p.greeting, nil
	case FieldExampleDialogue:
		return p.exampleDialogue, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidProfile, name)
}

// WithField returns a copy of the profile with one field replaced. The
// receiver is never mutated, so what-if comparisons stay safe under
// concurrent use.
func (p *Profile) WithField(name, value string) (*Profile, error) {
	clone := *p
	switch name {
	case FieldName:
		clone.name = value
	case FieldDescription:
		clone.description = value
	case FieldPersonality:
		clone.personality = value
	case FieldScenario:
		clone.scenario = value
	case FieldGreeting:
		clone.greeting = value
	case FieldExampleDialogue:
		clone.exampleDialogue = value
	default:
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidProfile, name)
	}
	return &clone, nil
}

// New builds a profile directly, mainly for tests and programmatic callers.
func New(spec Spec, fields map[string]string, book *lore.Book) (*Profile, error) {
	p := &Profile{spec: spec, book: book}
	for name, value := range fields {
		updated, err := p.WithField(name, value)
		if err != nil {
			return nil, err
		}
		p = updated
	}
	if p.name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	return p, nil
}

// MarshalJSON renders the profile back in its source shape.
func (p *Profile) MarshalJSON() ([]byte, error) {
	body := wireCard{
		Name:        p.name,
		Description: p.description,
		Personality: p.personality,
		Scenario:    p.scenario,
		FirstMes:    p.greeting,
		MesExample:  p.exampleDialogue,
	}
	if p.book != nil {
		body.CharacterBook = bookToWire(p.book)
	}
	if p.spec != SpecV2 {
		return json.Marshal(body)
	}
	body.AlternateGreetings = p.alternateGreetings
	return json.Marshal(wireEnvelope{
		Spec:        string(SpecV2),
		SpecVersion: p.specVersion,
		Data:        &body,
	})
}
