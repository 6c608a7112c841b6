package compose

import (
	"fmt"
	"strings"

	"lorekit/internal/card"
	"lorekit/internal/logging"
	"lorekit/internal/lore"
	"lorekit/internal/tokens"
)

// Source classifies where a segment's text came from.
type Source string

const (
	SourceProfileField Source = "profile-field"
	SourceLoreBefore   Source = "lore-before"
	SourceLoreAfter    Source = "lore-after"
)

// Segment is one ordered piece of the composed prompt.
type Segment struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Tokens   int    `json:"tokens"`
	Source   Source `json:"source"`
	priority int
}

// Priority reports the segment's drop priority: the lore entry's own for
// lore segments, the variant's implicit field priority otherwise.
func (s Segment) Priority() int { return s.priority }

// Composition is the assembled prompt: ordered segments, their token total,
// anything a budget policy dropped, and whether preserved content forced the
// total over budget.
type Composition struct {
	Segments    []Segment `json:"segments"`
	TotalTokens int       `json:"total_tokens"`
	Dropped     []Segment `json:"dropped,omitempty"`
	OverBudget  bool      `json:"over_budget,omitempty"`
}

// Text renders the composition as the final prompt string.
func (c *Composition) Text() string {
	parts := make([]string, 0, len(c.Segments))
	for _, s := range c.Segments {
		if s.Text == "" {
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Options tunes a single composition call.
type Options struct {
	// Input is the activation probe. Empty means the profile's greeting.
	Input string
	// History is the chat history, oldest first. Default empty.
	History []lore.Turn
	// Seed drives probability draws in the lore scan.
	Seed int64
	// ScanDepth overrides the book's scan depth when > 0.
	ScanDepth int
	// Budget, when non-nil, enforces a hard token ceiling.
	Budget *Budget
}

// Compositor composes prompts. It is stateless across calls apart from the
// lore engine's regex cache; a single Compositor is safe for concurrent use.
type Compositor struct {
	engine    *lore.Engine
	estimator tokens.Estimator
}

// New creates a compositor with the given estimator. A nil estimator gets
// the default character-ratio estimator.
func New(est tokens.Estimator) *Compositor {
	if est == nil {
		est = tokens.NewCharsEstimator(0)
	}
	return &Compositor{
		engine:    lore.NewEngine(),
		estimator: est,
	}
}

// Compose extracts the profile's fields per variant, runs lore activation,
// and assembles the budgeted segment sequence.
func (c *Compositor) Compose(p *card.Profile, variantName string, opts Options) (*Composition, error) {
	variant, err := VariantFor(variantName)
	if err != nil {
		return nil, err
	}
	scan := c.scanProfile(p, opts)
	return c.assemble(p, variant, scan, opts)
}

// TestInput probes a book with explicit input without composing a prompt.
func (c *Compositor) TestInput(input string, book *lore.Book, history []lore.Turn, opts Options) *lore.ScanResult {
	return c.engine.Scan(book, input, history, lore.ScanOptions{
		ScanDepth: opts.ScanDepth,
		Seed:      opts.Seed,
	})
}

// EntryStats summarizes a book without scanning.
func (c *Compositor) EntryStats(book *lore.Book) lore.BookStats {
	return lore.Stats(book)
}

// scanProfile runs activation for a profile using the options' input, or
// the greeting as the default probe.
func (c *Compositor) scanProfile(p *card.Profile, opts Options) *lore.ScanResult {
	input := opts.Input
	if input == "" {
		input = p.Greeting()
	}
	return c.engine.Scan(p.Book(), input, opts.History, lore.ScanOptions{
		ScanDepth: opts.ScanDepth,
		Seed:      opts.Seed,
	})
}

// assemble builds the ordered segment sequence from a finished scan:
// before_char lore, profile fields in variant order, after_char lore, then
// applies the budget.
func (c *Compositor) assemble(p *card.Profile, variant Variant, scan *lore.ScanResult, opts Options) (*Composition, error) {
	comp := &Composition{}

	for _, a := range scan.BeforeChar {
		comp.Segments = append(comp.Segments, c.loreSegment(a, SourceLoreBefore))
	}

	for i, name := range variant.Sections {
		text, err := p.FieldText(name)
		if err != nil {
			return nil, err
		}
		comp.Segments = append(comp.Segments, Segment{
			Name:     name,
			Text:     text,
			Tokens:   c.estimator.Estimate(text),
			Source:   SourceProfileField,
			priority: variant.fieldPriority(i),
		})
	}

	for _, a := range scan.AfterChar {
		comp.Segments = append(comp.Segments, c.loreSegment(a, SourceLoreAfter))
	}

	for _, s := range comp.Segments {
		comp.TotalTokens += s.Tokens
	}

	if opts.Budget != nil {
		c.applyBudget(comp, opts.Budget)
	}

	logging.L(logging.CategoryCompose).Debugw("composed prompt",
		"variant", variant.Name,
		"segments", len(comp.Segments),
		"tokens", comp.TotalTokens,
		"dropped", len(comp.Dropped),
		"over_budget", comp.OverBudget)
	return comp, nil
}

func (c *Compositor) loreSegment(a lore.Activation, src Source) Segment {
	name := a.Entry.Name
	if name == "" {
		name = fmt.Sprintf("lore:%d", a.Entry.ID)
	}
	return Segment{
		Name:     name,
		Text:     a.Entry.Content,
		Tokens:   c.estimator.Estimate(a.Entry.Content),
		Source:   src,
		priority: a.Entry.Priority,
	}
}
