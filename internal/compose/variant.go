// Package compose assembles final prompt text from profile fields and
// activated lore entries, under an optional hard token budget.
package compose

import (
	"errors"
	"fmt"

	"lorekit/internal/card"
)

// ErrUnknownVariant reports an unrecognized profile variant name.
var ErrUnknownVariant = errors.New("unknown variant")

// Variant is a named preset controlling which profile fields appear in a
// composition and in what order. Field position doubles as implicit drop
// priority: earlier fields rank higher.
type Variant struct {
	Name     string
	Sections []string
}

// Built-in variant names.
const (
	// VariantV2 orders sections the way v2 cards lay out their data block.
	VariantV2 = "v2"
	// VariantLegacy maps the sections onto the flat card's historical
	// ordering, where personality preceded description.
	VariantLegacy = "legacy"
)

var variants = map[string]Variant{
	VariantV2: {
		Name: VariantV2,
		Sections: []string{
			card.FieldName,
			card.FieldDescription,
			card.FieldPersonality,
			card.FieldScenario,
			card.FieldGreeting,
			card.FieldExampleDialogue,
		},
	},
	VariantLegacy: {
		Name: VariantLegacy,
		Sections: []string{
			card.FieldName,
			card.FieldPersonality,
			card.FieldDescription,
			card.FieldScenario,
			card.FieldExampleDialogue,
			card.FieldGreeting,
		},
	},
}

// VariantFor resolves a variant by name.
func VariantFor(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// VariantNames lists the registered variant names.
func VariantNames() []string {
	return []string{VariantV2, VariantLegacy}
}

// fieldPriority is the implicit drop priority of the i-th section: earlier
// sections rank higher. Lore entries carry their own explicit priority on
// the same scale.
func (v Variant) fieldPriority(index int) int {
	return len(v.Sections) - index
}
