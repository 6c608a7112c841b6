package lore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int, keys ...string) Entry {
	return Entry{
		ID:          id,
		Keys:        keys,
		Content:     fmt.Sprintf("content-%d", id),
		Enabled:     true,
		Probability: 100,
	}
}

func TestScanKeyMatching(t *testing.T) {
	eng := NewEngine()

	t.Run("literal match is case-insensitive by default", func(t *testing.T) {
		book := &Book{Entries: []Entry{entry(1, "Dragon")}}
		res := eng.Scan(book, "the DRAGON sleeps", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, []string{"Dragon"}, res.Activations[0].MatchedKeys)
		assert.Equal(t, ReasonKeyMatch, res.Activations[0].Reason)
	})

	t.Run("case-sensitive entries require exact case", func(t *testing.T) {
		e := entry(1, "Dragon")
		e.CaseSensitive = true
		book := &Book{Entries: []Entry{e}}

		res := eng.Scan(book, "the dragon sleeps", nil, ScanOptions{})
		assert.Empty(t, res.Activations)

		res = eng.Scan(book, "the Dragon sleeps", nil, ScanOptions{})
		assert.Len(t, res.Activations, 1)
	})

	t.Run("all matching keys are reported", func(t *testing.T) {
		book := &Book{Entries: []Entry{entry(1, "sword", "shield", "axe")}}
		res := eng.Scan(book, "a sword and a shield", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, []string{"sword", "shield"}, res.Activations[0].MatchedKeys)
	})

	t.Run("disabled entries never activate", func(t *testing.T) {
		e := entry(1, "dragon")
		e.Enabled = false
		book := &Book{Entries: []Entry{e}}
		res := eng.Scan(book, "dragon", nil, ScanOptions{})
		assert.Empty(t, res.Activations)
	})

	t.Run("empty book and nil book are safe", func(t *testing.T) {
		assert.Empty(t, eng.Scan(nil, "dragon", nil, ScanOptions{}).Activations)
		assert.Empty(t, eng.Scan(&Book{}, "dragon", nil, ScanOptions{}).Activations)
	})
}

func TestScanRegexKeys(t *testing.T) {
	eng := NewEngine()

	t.Run("regex keys match patterns", func(t *testing.T) {
		e := entry(1, `drag\w+`)
		e.UseRegex = true
		book := &Book{Entries: []Entry{e}}
		res := eng.Scan(book, "dragons ahead", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, []string{`drag\w+`}, res.Activations[0].MatchedKeys)
	})

	t.Run("regex respects case sensitivity flag", func(t *testing.T) {
		e := entry(1, `Drag\w+`)
		e.UseRegex = true
		e.CaseSensitive = true
		book := &Book{Entries: []Entry{e}}
		assert.Empty(t, eng.Scan(book, "dragons", nil, ScanOptions{}).Activations)
		assert.Len(t, eng.Scan(book, "Dragons", nil, ScanOptions{}).Activations, 1)
	})

	t.Run("invalid regex disables only that key", func(t *testing.T) {
		e := entry(1, `[unclosed`, "dragon")
		e.UseRegex = true
		book := &Book{Entries: []Entry{e}}
		res := eng.Scan(book, "a dragon", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, []string{"dragon"}, res.Activations[0].MatchedKeys)
	})
}

func TestScanSelectiveLogic(t *testing.T) {
	eng := NewEngine()

	t.Run("AND requires a secondary key", func(t *testing.T) {
		e := entry(1, "castle")
		e.SecondaryKeys = []string{"siege", "battle"}
		e.SelectiveLogic = LogicAND
		book := &Book{Entries: []Entry{e}}

		assert.Empty(t, eng.Scan(book, "a quiet castle", nil, ScanOptions{}).Activations)
		res := eng.Scan(book, "the castle is under siege", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, []string{"castle"}, res.Activations[0].MatchedKeys)
	})

	t.Run("NOT vetoes on any secondary key", func(t *testing.T) {
		e := entry(1, "castle")
		e.SecondaryKeys = []string{"ruin"}
		e.SelectiveLogic = LogicNOT
		book := &Book{Entries: []Entry{e}}

		assert.Len(t, eng.Scan(book, "a proud castle", nil, ScanOptions{}).Activations, 1)
		assert.Empty(t, eng.Scan(book, "a castle in ruin", nil, ScanOptions{}).Activations)
	})

	t.Run("no logic ignores secondary keys", func(t *testing.T) {
		e := entry(1, "castle")
		e.SecondaryKeys = []string{"ruin"}
		book := &Book{Entries: []Entry{e}}
		assert.Len(t, eng.Scan(book, "a proud castle", nil, ScanOptions{}).Activations, 1)
	})

	t.Run("secondary keys match literally even on regex entries", func(t *testing.T) {
		e := entry(1, `cast\w+`)
		e.UseRegex = true
		e.SecondaryKeys = []string{`sie\w+`}
		e.SelectiveLogic = LogicAND
		book := &Book{Entries: []Entry{e}}

		// The secondary pattern is not interpreted as a regex, so "siege"
		// does not satisfy it; only the literal string would.
		assert.Empty(t, eng.Scan(book, "castle under siege", nil, ScanOptions{}).Activations)
		assert.Len(t, eng.Scan(book, `castle sie\w+`, nil, ScanOptions{}).Activations, 1)
	})
}

func TestScanConstantEntries(t *testing.T) {
	eng := NewEngine()

	e := Entry{ID: 1, Content: "always", Enabled: true, Constant: true, Probability: 100}
	book := &Book{Entries: []Entry{e}}

	t.Run("constant activates on empty input", func(t *testing.T) {
		res := eng.Scan(book, "", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, ReasonConstant, res.Activations[0].Reason)
		assert.Empty(t, res.Activations[0].MatchedKeys)
	})

	t.Run("constant bypasses probability", func(t *testing.T) {
		low := e
		low.Probability = 0
		b := &Book{Entries: []Entry{low}}
		for seed := int64(0); seed < 10; seed++ {
			res := eng.Scan(b, "", nil, ScanOptions{Seed: seed})
			assert.Len(t, res.Activations, 1)
		}
	})

	t.Run("disabled constant stays inactive", func(t *testing.T) {
		off := e
		off.Enabled = false
		b := &Book{Entries: []Entry{off}}
		assert.Empty(t, eng.Scan(b, "", nil, ScanOptions{}).Activations)
	})
}

func TestScanDepth(t *testing.T) {
	eng := NewEngine()
	history := []Turn{
		{Role: "user", Text: "we met a dragon"},
		{Role: "assistant", Text: "it flew away"},
		{Role: "user", Text: "what next"},
	}
	book := &Book{Entries: []Entry{entry(1, "dragon")}, ScanDepth: 1}

	t.Run("book depth limits the window", func(t *testing.T) {
		res := eng.Scan(book, "onward", history, ScanOptions{})
		assert.Empty(t, res.Activations)
	})

	t.Run("option depth overrides book depth", func(t *testing.T) {
		res := eng.Scan(book, "onward", history, ScanOptions{ScanDepth: 3})
		assert.Len(t, res.Activations, 1)
	})

	t.Run("zero depth scans full history", func(t *testing.T) {
		full := &Book{Entries: []Entry{entry(1, "dragon")}}
		res := eng.Scan(full, "onward", history, ScanOptions{})
		assert.Len(t, res.Activations, 1)
	})

	t.Run("depth larger than history is clamped", func(t *testing.T) {
		res := eng.Scan(book, "onward", history, ScanOptions{ScanDepth: 50})
		assert.Len(t, res.Activations, 1)
	})
}

func TestScanRecursive(t *testing.T) {
	eng := NewEngine()

	chain := func(recursive bool) *Book {
		a := entry(1, "trigger")
		a.Content = "mentions the relic"
		b := entry(2, "relic")
		b.Content = "guarded by the lich"
		c := entry(3, "lich")
		c.Content = "end of chain"
		return &Book{Entries: []Entry{a, b, c}, RecursiveScanning: recursive}
	}

	t.Run("disabled recursion scans once", func(t *testing.T) {
		res := eng.Scan(chain(false), "pull the trigger", nil, ScanOptions{})
		require.Len(t, res.Activations, 1)
		assert.Equal(t, 1, res.Activations[0].Entry.ID)
	})

	t.Run("recursion follows content chains", func(t *testing.T) {
		res := eng.Scan(chain(true), "pull the trigger", nil, ScanOptions{})
		require.Len(t, res.Activations, 3)
		reasons := map[int]Reason{}
		for _, a := range res.Activations {
			reasons[a.Entry.ID] = a.Reason
		}
		assert.Equal(t, ReasonKeyMatch, reasons[1])
		assert.Equal(t, ReasonRecursive, reasons[2])
		assert.Equal(t, ReasonRecursive, reasons[3])
	})

	t.Run("mutual references terminate", func(t *testing.T) {
		a := entry(1, "alpha")
		a.Content = "see beta"
		b := entry(2, "beta")
		b.Content = "see alpha"
		book := &Book{Entries: []Entry{a, b}, RecursiveScanning: true}
		res := eng.Scan(book, "alpha", nil, ScanOptions{})
		assert.Len(t, res.Activations, 2)
	})

	t.Run("entries activate at most once", func(t *testing.T) {
		a := entry(1, "echo")
		a.Content = "echo echo echo"
		book := &Book{Entries: []Entry{a}, RecursiveScanning: true}
		res := eng.Scan(book, "echo", nil, ScanOptions{})
		assert.Len(t, res.Activations, 1)
	})
}

func TestScanProbability(t *testing.T) {
	eng := NewEngine()

	t.Run("zero probability never activates", func(t *testing.T) {
		e := entry(1, "dragon")
		e.Probability = 0
		book := &Book{Entries: []Entry{e}}
		for seed := int64(0); seed < 20; seed++ {
			assert.Empty(t, eng.Scan(book, "dragon", nil, ScanOptions{Seed: seed}).Activations)
		}
	})

	t.Run("same seed reproduces the same outcome", func(t *testing.T) {
		e := entry(1, "dragon")
		e.Probability = 50
		book := &Book{Entries: []Entry{e}}
		first := len(eng.Scan(book, "dragon", nil, ScanOptions{Seed: 42}).Activations)
		for i := 0; i < 10; i++ {
			again := len(eng.Scan(book, "dragon", nil, ScanOptions{Seed: 42}).Activations)
			assert.Equal(t, first, again)
		}
	})

	t.Run("certain entries do not consume draws", func(t *testing.T) {
		// With a leading 100% entry present or absent, the 50% entry sees
		// the same draw sequence for a given seed.
		sure := entry(1, "dragon")
		coin := entry(2, "dragon")
		coin.Probability = 50

		withSure := &Book{Entries: []Entry{sure, coin}}
		alone := &Book{Entries: []Entry{coin}}
		for seed := int64(0); seed < 20; seed++ {
			a := eng.Scan(withSure, "dragon", nil, ScanOptions{Seed: seed})
			b := eng.Scan(alone, "dragon", nil, ScanOptions{Seed: seed})
			gotCoin := false
			for _, act := range a.Activations {
				if act.Entry.ID == 2 {
					gotCoin = true
				}
			}
			assert.Equal(t, gotCoin, len(b.Activations) == 1, "seed %d", seed)
		}
	})

	t.Run("varying seeds eventually flips a coin entry", func(t *testing.T) {
		e := entry(1, "dragon")
		e.Probability = 50
		book := &Book{Entries: []Entry{e}}
		hits := 0
		for seed := int64(0); seed < 100; seed++ {
			hits += len(eng.Scan(book, "dragon", nil, ScanOptions{Seed: seed}).Activations)
		}
		assert.Greater(t, hits, 0)
		assert.Less(t, hits, 100)
	})
}

func TestScanOrdering(t *testing.T) {
	eng := NewEngine()

	mk := func(id, priority, order int) Entry {
		e := entry(id, "key")
		e.Priority = priority
		e.InsertionOrder = order
		return e
	}

	t.Run("priority descending wins", func(t *testing.T) {
		book := &Book{Entries: []Entry{mk(1, 1, 0), mk(2, 9, 0), mk(3, 5, 0)}}
		res := eng.Scan(book, "key", nil, ScanOptions{})
		require.Len(t, res.Activations, 3)
		assert.Equal(t, []int{2, 3, 1}, activationIDs(res.Activations))
	})

	t.Run("insertion order breaks priority ties", func(t *testing.T) {
		book := &Book{Entries: []Entry{mk(1, 5, 2), mk(2, 5, 1), mk(3, 5, 3)}}
		res := eng.Scan(book, "key", nil, ScanOptions{})
		assert.Equal(t, []int{2, 1, 3}, activationIDs(res.Activations))
	})

	t.Run("id breaks remaining ties", func(t *testing.T) {
		book := &Book{Entries: []Entry{mk(7, 5, 1), mk(3, 5, 1), mk(5, 5, 1)}}
		res := eng.Scan(book, "key", nil, ScanOptions{})
		assert.Equal(t, []int{3, 5, 7}, activationIDs(res.Activations))
	})
}

func TestScanPositionPartition(t *testing.T) {
	eng := NewEngine()

	before := entry(1, "key")
	after := entry(2, "key")
	after.Position = AfterChar
	after.Priority = 10
	defaulted := entry(3, "key") // no position set

	book := &Book{Entries: []Entry{before, after, defaulted}}
	res := eng.Scan(book, "key", nil, ScanOptions{})

	require.Len(t, res.Activations, 3)
	assert.Equal(t, []int{1, 3}, activationIDs(res.BeforeChar))
	assert.Equal(t, []int{2}, activationIDs(res.AfterChar))
	// Partition preserves the global sort: the high-priority after_char
	// entry leads the combined list.
	assert.Equal(t, 2, res.Activations[0].Entry.ID)
}

func activationIDs(acts []Activation) []int {
	ids := make([]int, len(acts))
	for i, a := range acts {
		ids[i] = a.Entry.ID
	}
	return ids
}

func TestBookValidate(t *testing.T) {
	t.Run("valid book passes", func(t *testing.T) {
		b := &Book{Entries: []Entry{entry(1, "a"), entry(2, "b")}}
		assert.NoError(t, b.Validate())
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		b := &Book{Entries: []Entry{entry(1, "a"), entry(1, "b")}}
		assert.Error(t, b.Validate())
	})

	t.Run("keyless non-constant rejected", func(t *testing.T) {
		b := &Book{Entries: []Entry{{ID: 1, Enabled: true, Probability: 100}}}
		assert.Error(t, b.Validate())
	})

	t.Run("keyless constant accepted", func(t *testing.T) {
		b := &Book{Entries: []Entry{{ID: 1, Enabled: true, Constant: true, Probability: 100}}}
		assert.NoError(t, b.Validate())
	})

	t.Run("probability out of range rejected", func(t *testing.T) {
		e := entry(1, "a")
		e.Probability = 101
		assert.Error(t, (&Book{Entries: []Entry{e}}).Validate())
		e.Probability = -1
		assert.Error(t, (&Book{Entries: []Entry{e}}).Validate())
	})
}
