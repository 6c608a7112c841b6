package compose

import (
	"sort"

	"lorekit/internal/logging"
)

// DropPolicy selects what gets cut when a composition exceeds its budget.
type DropPolicy string

const (
	// DropTruncateEnd drops trailing segments in assembled order, then
	// truncates the last remaining segment to the exact allowance.
	DropTruncateEnd DropPolicy = "truncate-end"
	// DropOldestFirst drops eligible segments in ascending definition
	// order: earliest-authored profile fields, then lowest-priority lore.
	DropOldestFirst DropPolicy = "oldest-first"
	// DropLowestPriority drops the lowest-priority droppable segment
	// first, regardless of position.
	DropLowestPriority DropPolicy = "lowest-priority"
)

// Budget is a hard token ceiling plus the policy for meeting it. Segments
// named in PreserveFields are never dropped or truncated; when they alone
// exceed MaxTokens the composition returns whole with OverBudget set.
type Budget struct {
	MaxTokens      int
	Policy         DropPolicy
	PreserveFields []string
}

func (b *Budget) preserveSet() map[string]bool {
	if len(b.PreserveFields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(b.PreserveFields))
	for _, name := range b.PreserveFields {
		set[name] = true
	}
	return set
}

// applyBudget enforces the budget on an assembled composition. Shortfalls
// are data, never errors: preservation always wins over the ceiling.
func (c *Compositor) applyBudget(comp *Composition, b *Budget) {
	if b.MaxTokens <= 0 || comp.TotalTokens <= b.MaxTokens {
		return
	}

	preserve := b.preserveSet()
	preservedTotal := 0
	for _, s := range comp.Segments {
		if preserve[s.Name] {
			preservedTotal += s.Tokens
		}
	}
	if preservedTotal > b.MaxTokens {
		comp.OverBudget = true
		logging.L(logging.CategoryCompose).Warnw("preserved segments exceed budget",
			"preserved_tokens", preservedTotal, "max_tokens", b.MaxTokens)
		return
	}

	switch b.Policy {
	case DropOldestFirst:
		c.dropInOrder(comp, b.MaxTokens, oldestFirstOrder(comp, preserve))
	case DropLowestPriority:
		c.dropInOrder(comp, b.MaxTokens, lowestPriorityOrder(comp, preserve))
	default:
		c.truncateEnd(comp, b.MaxTokens, preserve)
	}

	comp.OverBudget = comp.TotalTokens > b.MaxTokens
}

// truncateEnd walks backward, dropping whole trailing segments while that
// keeps the result over budget, then truncates the last surviving droppable
// segment to the exact remaining allowance.
func (c *Compositor) truncateEnd(comp *Composition, maxTokens int, preserve map[string]bool) {
	dropped := make(map[int]bool)
	for i := len(comp.Segments) - 1; i >= 0 && comp.TotalTokens > maxTokens; i-- {
		s := &comp.Segments[i]
		if preserve[s.Name] {
			continue
		}
		if comp.TotalTokens-s.Tokens >= maxTokens {
			comp.TotalTokens -= s.Tokens
			comp.Dropped = append(comp.Dropped, *s)
			dropped[i] = true
			continue
		}
		// Dropping the whole segment would overshoot; trim it instead.
		allowance := maxTokens - (comp.TotalTokens - s.Tokens)
		comp.TotalTokens -= s.Tokens
		s.Text = c.truncateToTokens(s.Text, allowance)
		s.Tokens = c.estimator.Estimate(s.Text)
		comp.TotalTokens += s.Tokens
	}
	removeDropped(comp, dropped)
}

// dropInOrder removes segments (by index) in the given order until the
// composition fits.
func (c *Compositor) dropInOrder(comp *Composition, maxTokens int, order []int) {
	dropped := make(map[int]bool)
	for _, idx := range order {
		if comp.TotalTokens <= maxTokens {
			break
		}
		s := comp.Segments[idx]
		comp.TotalTokens -= s.Tokens
		comp.Dropped = append(comp.Dropped, s)
		dropped[idx] = true
	}
	removeDropped(comp, dropped)
}

// oldestFirstOrder ranks droppable segments by definition order: profile
// fields in variant order first, then lore by ascending priority.
func oldestFirstOrder(comp *Composition, preserve map[string]bool) []int {
	var fields, loreIdx []int
	for i, s := range comp.Segments {
		if preserve[s.Name] {
			continue
		}
		if s.Source == SourceProfileField {
			fields = append(fields, i)
		} else {
			loreIdx = append(loreIdx, i)
		}
	}
	sort.SliceStable(loreIdx, func(i, j int) bool {
		return comp.Segments[loreIdx[i]].priority < comp.Segments[loreIdx[j]].priority
	})
	return append(fields, loreIdx...)
}

// lowestPriorityOrder ranks all droppable segments by ascending priority.
// Ties keep assembled order, so later segments of equal priority survive
// longer only if they appear earlier in the drop list.
func lowestPriorityOrder(comp *Composition, preserve map[string]bool) []int {
	var order []int
	for i, s := range comp.Segments {
		if preserve[s.Name] {
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return comp.Segments[order[i]].priority < comp.Segments[order[j]].priority
	})
	return order
}

// removeDropped rebuilds the segment list without the dropped indices,
// preserving assembled order.
func removeDropped(comp *Composition, dropped map[int]bool) {
	if len(dropped) == 0 {
		return
	}
	kept := comp.Segments[:0]
	for i := range comp.Segments {
		if !dropped[i] {
			kept = append(kept, comp.Segments[i])
		}
	}
	comp.Segments = kept
}

// truncateToTokens returns the longest rune prefix of text whose estimate
// fits the allowance. Binary search keeps it cheap for long segments.
func (c *Compositor) truncateToTokens(text string, allowance int) string {
	if allowance <= 0 {
		return ""
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.estimator.Estimate(string(runes[:mid])) <= allowance {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
