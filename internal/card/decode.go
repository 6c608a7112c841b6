package card

import (
	"encoding/json"
	"fmt"

	"lorekit/internal/logging"
	"lorekit/internal/lore"
)

// wireEnvelope is the V2 tagged wrapper.
type wireEnvelope struct {
	Spec        string    `json:"spec"`
	SpecVersion string    `json:"spec_version,omitempty"`
	Data        *wireCard `json:"data,omitempty"`
}

// wireCard covers the field set shared by both shapes. V1 cards are this
// struct at top level; V2 cards nest it under "data".
type wireCard struct {
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Personality        string    `json:"personality,omitempty"`
	Scenario           string    `json:"scenario,omitempty"`
	FirstMes           string    `json:"first_mes,omitempty"`
	MesExample         string    `json:"mes_example,omitempty"`
	AlternateGreetings []string  `json:"alternate_greetings,omitempty"`
	CharacterBook      *wireBook `json:"character_book,omitempty"`
}

// wireBook mirrors lore.Book with pointer fields where the wire default
// differs from the Go zero value (enabled defaults true, probability 100).
type wireBook struct {
	Name              string      `json:"name,omitempty"`
	ScanDepth         int         `json:"scan_depth,omitempty"`
	TokenBudget       int         `json:"token_budget,omitempty"`
	RecursiveScanning bool        `json:"recursive_scanning,omitempty"`
	Entries           []wireEntry `json:"entries"`
}

type wireEntry struct {
	ID             int      `json:"id"`
	Keys           []string `json:"keys"`
	SecondaryKeys  []string `json:"secondary_keys,omitempty"`
	SelectiveLogic string   `json:"selective_logic,omitempty"`
	Content        string   `json:"content"`
	Enabled        *bool    `json:"enabled,omitempty"`
	InsertionOrder int      `json:"insertion_order"`
	Priority       int      `json:"priority,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive,omitempty"`
	UseRegex       bool     `json:"use_regex,omitempty"`
	Constant       bool     `json:"constant,omitempty"`
	Position       string   `json:"position,omitempty"`
	Probability    *int     `json:"probability,omitempty"`
	ScanDepth      int      `json:"scan_depth,omitempty"`
	ScanFrequency  int      `json:"scan_frequency,omitempty"`
	Name           string   `json:"name,omitempty"`
}

// Decode parses a card in either supported shape. The "spec" tag selects the
// V2 wrapper; anything else is treated as a legacy flat card.
func Decode(data []byte) (*Profile, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if env.Spec == string(SpecV2) {
		if env.Data == nil {
			return nil, fmt.Errorf("%w: spec-tagged card has no data object", ErrInvalidProfile)
		}
		return fromWire(env.Data, SpecV2, env.SpecVersion)
	}
	if env.Spec != "" {
		return nil, fmt.Errorf("%w: unsupported spec tag %q", ErrInvalidProfile, env.Spec)
	}

	var flat wireCard
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return fromWire(&flat, SpecV1, "")
}

// DecodeBook parses a standalone lorebook written in the same entry format a
// card's character_book uses. It applies the same wire defaults (enabled
// true, probability 100, insertion order from slice position), so a book
// behaves identically whether it arrives embedded in a card or on its own.
func DecodeBook(data []byte) (*lore.Book, error) {
	var w wireBook
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBook, err)
	}
	book := bookFromWire(&w)
	if err := book.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBook, err)
	}
	return book, nil
}

func fromWire(w *wireCard, spec Spec, specVersion string) (*Profile, error) {
	if w.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	p := &Profile{
		spec:               spec,
		specVersion:        specVersion,
		name:               w.Name,
		description:        w.Description,
		personality:        w.Personality,
		scenario:           w.Scenario,
		greeting:           w.FirstMes,
		exampleDialogue:    w.MesExample,
		alternateGreetings: w.AlternateGreetings,
	}

	if w.CharacterBook != nil {
		book := bookFromWire(w.CharacterBook)
		if err := book.Validate(); err != nil {
			return nil, fmt.Errorf("%w: character book: %v", ErrInvalidProfile, err)
		}
		p.book = book
	}

	logging.L(logging.CategoryCard).Debugw("decoded card",
		"spec", spec, "name", p.name, "has_book", p.book != nil)
	return p, nil
}

func bookFromWire(w *wireBook) *lore.Book {
	book := &lore.Book{
		Name:              w.Name,
		ScanDepth:         w.ScanDepth,
		TokenBudget:       w.TokenBudget,
		RecursiveScanning: w.RecursiveScanning,
		Entries:           make([]lore.Entry, 0, len(w.Entries)),
	}
	for i, we := range w.Entries {
		e := lore.Entry{
			ID:             we.ID,
			Keys:           we.Keys,
			SecondaryKeys:  we.SecondaryKeys,
			SelectiveLogic: lore.SelectiveLogic(we.SelectiveLogic),
			Content:        we.Content,
			Enabled:        true,
			InsertionOrder: we.InsertionOrder,
			Priority:       we.Priority,
			CaseSensitive:  we.CaseSensitive,
			UseRegex:       we.UseRegex,
			Constant:       we.Constant,
			Position:       lore.Position(we.Position),
			Probability:    100,
			ScanDepth:      we.ScanDepth,
			ScanFrequency:  we.ScanFrequency,
			Name:           we.Name,
		}
		if we.Enabled != nil {
			e.Enabled = *we.Enabled
		}
		if we.Probability != nil {
			e.Probability = *we.Probability
		}
		if e.InsertionOrder == 0 {
			e.InsertionOrder = i
		}
		book.Entries = append(book.Entries, e)
	}
	return book
}

func bookToWire(b *lore.Book) *wireBook {
	w := &wireBook{
		Name:              b.Name,
		ScanDepth:         b.ScanDepth,
		TokenBudget:       b.TokenBudget,
		RecursiveScanning: b.RecursiveScanning,
		Entries:           make([]wireEntry, 0, len(b.Entries)),
	}
	for i := range b.Entries {
		e := &b.Entries[i]
		enabled := e.Enabled
		probability := e.Probability
		w.Entries = append(w.Entries, wireEntry{
			ID:             e.ID,
			Keys:           e.Keys,
			SecondaryKeys:  e.SecondaryKeys,
			SelectiveLogic: string(e.SelectiveLogic),
			Content:        e.Content,
			Enabled:        &enabled,
			InsertionOrder: e.InsertionOrder,
			Priority:       e.Priority,
			CaseSensitive:  e.CaseSensitive,
			UseRegex:       e.UseRegex,
			Constant:       e.Constant,
			Position:       string(e.Position),
			Probability:    &probability,
			ScanDepth:      e.ScanDepth,
			ScanFrequency:  e.ScanFrequency,
			Name:           e.Name,
		})
	}
	return w
}
