// Package lore implements the lorebook model and the activation engine that
// decides which keyed entries join a composed prompt for a given turn.
package lore

import "fmt"

// SelectiveLogic gates a primary key match on secondary keys.
type SelectiveLogic string

const (
	// LogicNone means a primary match alone suffices.
	LogicNone SelectiveLogic = ""
	// LogicAND requires at least one secondary key present in the window.
	LogicAND SelectiveLogic = "and"
	// LogicNOT requires no secondary key present in the window.
	LogicNOT SelectiveLogic = "not"
)

// Position places an entry's content relative to the profile fields.
type Position string

const (
	BeforeChar Position = "before_char"
	AfterChar  Position = "after_char"
)

// Reason records why an entry activated.
type Reason string

const (
	ReasonKeyMatch  Reason = "key-match"
	ReasonConstant  Reason = "constant"
	ReasonRecursive Reason = "recursive"
)

// Entry is one keyed lorebook record.
type Entry struct {
	ID             int            `json:"id" yaml:"id"`
	Keys           []string       `json:"keys" yaml:"keys"`
	SecondaryKeys  []string       `json:"secondary_keys,omitempty" yaml:"secondary_keys,omitempty"`
	SelectiveLogic SelectiveLogic `json:"selective_logic,omitempty" yaml:"selective_logic,omitempty"`
	Content        string         `json:"content" yaml:"content"`
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	InsertionOrder int            `json:"insertion_order" yaml:"insertion_order"`
	Priority       int            `json:"priority" yaml:"priority"`
	CaseSensitive  bool           `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	UseRegex       bool           `json:"use_regex,omitempty" yaml:"use_regex,omitempty"`
	Constant       bool           `json:"constant,omitempty" yaml:"constant,omitempty"`
	Position       Position       `json:"position,omitempty" yaml:"position,omitempty"`
	Probability    int            `json:"probability" yaml:"probability"` // 0-100
	ScanDepth      int            `json:"scan_depth,omitempty" yaml:"scan_depth,omitempty"`
	ScanFrequency  int            `json:"scan_frequency,omitempty" yaml:"scan_frequency,omitempty"`
	Name           string         `json:"name,omitempty" yaml:"name,omitempty"`
}

// position returns the entry position, defaulting to before_char.
func (e *Entry) position() Position {
	if e.Position == AfterChar {
		return AfterChar
	}
	return BeforeChar
}

// Book is an ordered set of entries plus scan settings.
type Book struct {
	Name              string  `json:"name,omitempty" yaml:"name,omitempty"`
	Entries           []Entry `json:"entries" yaml:"entries"`
	ScanDepth         int     `json:"scan_depth,omitempty" yaml:"scan_depth,omitempty"` // 0 = full history
	TokenBudget       int     `json:"token_budget,omitempty" yaml:"token_budget,omitempty"`
	RecursiveScanning bool    `json:"recursive_scanning,omitempty" yaml:"recursive_scanning,omitempty"`
}

// Validate checks structural invariants: unique entry IDs, non-empty key sets
// for non-constant entries.
func (b *Book) Validate() error {
	seen := make(map[int]bool, len(b.Entries))
	for i := range b.Entries {
		e := &b.Entries[i]
		if seen[e.ID] {
			return fmt.Errorf("duplicate entry id %d", e.ID)
		}
		seen[e.ID] = true
		if !e.Constant && len(e.Keys) == 0 {
			return fmt.Errorf("entry %d has no keys", e.ID)
		}
		if e.Probability < 0 || e.Probability > 100 {
			return fmt.Errorf("entry %d probability %d out of range", e.ID, e.Probability)
		}
	}
	return nil
}

// Turn is one chat message. Sequences are oldest-first and treated as
// immutable for the duration of a call.
type Turn struct {
	Role string `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// Activation records one activated entry and why.
type Activation struct {
	Entry       *Entry
	MatchedKeys []string
	Reason      Reason
}

// ScanResult is the full outcome of a scan: all activations in final sorted
// order, plus the position-partitioned groups in the same relative order.
type ScanResult struct {
	Activations []Activation
	BeforeChar  []Activation
	AfterChar   []Activation
}
