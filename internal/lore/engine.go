package lore

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"

	"lorekit/internal/logging"
)

// Engine evaluates lorebook activation. It holds no per-call state; the only
// shared structure is a self-synchronized regex cache, so a single Engine is
// safe for concurrent scans.
type Engine struct {
	regexCache sync.Map // pattern string -> *regexp.Regexp or compileError
}

// compileError marks a pattern that failed to compile so it is not retried.
type compileError struct{ err error }

// NewEngine creates an activation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ScanOptions tunes a single scan.
type ScanOptions struct {
	// ScanDepth overrides the book's scan depth when > 0.
	ScanDepth int
	// Seed drives probability draws. Identical seeds with identical inputs
	// reproduce identical activations; the draw source is never ambient
	// entropy.
	Seed int64
}

// Scan decides which entries of book activate for the given input and
// history (oldest-first). The result is fully deterministic for a fixed
// seed: entries are tested in definition order, probability draws are
// consumed in that order, and the final sort breaks all ties.
func (eng *Engine) Scan(book *Book, input string, history []Turn, opts ScanOptions) *ScanResult {
	res := &ScanResult{}
	if book == nil || len(book.Entries) == 0 {
		return res
	}

	window := buildWindow(book, input, history, opts.ScanDepth)
	rng := rand.New(rand.NewSource(opts.Seed))
	active := make(map[int]bool, len(book.Entries))

	// Pass 1 scans the initial window. With recursive scanning enabled,
	// later passes rescan against activated content until a fixed point;
	// the pass cap guarantees termination on fully cyclic books.
	maxPasses := 1
	if book.RecursiveScanning {
		maxPasses = len(book.Entries)
	}

	for pass := 0; pass < maxPasses; pass++ {
		var added []string
		for i := range book.Entries {
			e := &book.Entries[i]
			if !e.Enabled || active[e.ID] {
				continue
			}

			var act *Activation
			switch {
			case e.Constant:
				act = &Activation{Entry: e, Reason: ReasonConstant}
			default:
				matched := eng.matchEntry(e, window)
				if len(matched) == 0 {
					continue
				}
				if !draw(rng, e.Probability) {
					continue
				}
				reason := ReasonKeyMatch
				if pass > 0 {
					reason = ReasonRecursive
				}
				act = &Activation{Entry: e, MatchedKeys: matched, Reason: reason}
			}

			active[e.ID] = true
			res.Activations = append(res.Activations, *act)
			added = append(added, e.Content)
		}

		if len(added) == 0 {
			break
		}
		window += "\n" + strings.Join(added, "\n")
	}

	sortActivations(res.Activations)
	for _, a := range res.Activations {
		if a.Entry.position() == AfterChar {
			res.AfterChar = append(res.AfterChar, a)
		} else {
			res.BeforeChar = append(res.BeforeChar, a)
		}
	}
	return res
}

// buildWindow concatenates the last scanDepth history turns plus the input,
// oldest first. Depth resolution: explicit option, then book setting, then
// the full history.
func buildWindow(book *Book, input string, history []Turn, depthOverride int) string {
	depth := book.ScanDepth
	if depthOverride > 0 {
		depth = depthOverride
	}
	if depth <= 0 || depth > len(history) {
		depth = len(history)
	}

	parts := make([]string, 0, depth+1)
	for _, t := range history[len(history)-depth:] {
		parts = append(parts, t.Text)
	}
	parts = append(parts, input)
	return strings.Join(parts, "\n")
}

// matchEntry returns the primary keys that hit the window, after the
// entry's selective logic has been applied. Empty means no activation.
func (eng *Engine) matchEntry(e *Entry, window string) []string {
	var matched []string
	for _, key := range e.Keys {
		if eng.keyMatches(e, key, window) {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	if len(e.SecondaryKeys) > 0 {
		any := false
		for _, key := range e.SecondaryKeys {
			if containsFold(window, key, e.CaseSensitive) {
				any = true
				break
			}
		}
		switch e.SelectiveLogic {
		case LogicAND:
			if !any {
				return nil
			}
		case LogicNOT:
			if any {
				return nil
			}
		}
	}
	return matched
}

// keyMatches tests one primary key against the window. Regex keys use Go's
// RE2 engine, which is linear-time, so user-supplied patterns cannot stall a
// scan. A pattern that fails to compile disables only that key.
func (eng *Engine) keyMatches(e *Entry, key, window string) bool {
	if e.UseRegex {
		re := eng.compile(key, e.CaseSensitive)
		if re == nil {
			return false
		}
		return re.MatchString(window)
	}
	return containsFold(window, key, e.CaseSensitive)
}

// compile returns a cached compiled pattern, or nil for invalid patterns.
func (eng *Engine) compile(pattern string, caseSensitive bool) *regexp.Regexp {
	cacheKey := pattern
	if !caseSensitive {
		cacheKey = "(?i)" + pattern
	}
	if v, ok := eng.regexCache.Load(cacheKey); ok {
		if re, ok := v.(*regexp.Regexp); ok {
			return re
		}
		return nil
	}

	re, err := regexp.Compile(cacheKey)
	if err != nil {
		logging.L(logging.CategoryLore).Warnw("invalid regex key, skipping",
			"pattern", pattern, "error", err)
		eng.regexCache.Store(cacheKey, compileError{err})
		return nil
	}
	eng.regexCache.Store(cacheKey, re)
	return re
}

// containsFold is substring matching with optional case folding.
func containsFold(haystack, needle string, caseSensitive bool) bool {
	if needle == "" {
		return false
	}
	if caseSensitive {
		return strings.Contains(haystack, needle)
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// draw succeeds for probability >= 100 without consuming randomness, so
// all-certain books are seed-independent.
func draw(rng *rand.Rand, probability int) bool {
	if probability >= 100 {
		return true
	}
	if probability <= 0 {
		return false
	}
	return rng.Intn(100) < probability
}

// sortActivations orders by priority descending, then insertion order
// ascending, then ID ascending. The triple makes output order total.
func sortActivations(acts []Activation) {
	sort.SliceStable(acts, func(i, j int) bool {
		a, b := acts[i].Entry, acts[j].Entry
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.InsertionOrder != b.InsertionOrder {
			return a.InsertionOrder < b.InsertionOrder
		}
		return a.ID < b.ID
	})
}
