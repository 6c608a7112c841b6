package compose

import "lorekit/internal/card"

// Preview compares a composition before and after a single field edit.
type Preview struct {
	Original   *Composition `json:"original"`
	Modified   *Composition `json:"modified"`
	TokenDelta int          `json:"token_delta"`
}

// PreviewFieldChange recomputes the composition with one field replaced.
// The edit is a pure structural copy; the input profile is untouched.
// Activation re-runs only when the changed field feeds the scan window,
// which happens when the greeting is acting as the default probe input;
// otherwise the original scan is reused verbatim.
func (c *Compositor) PreviewFieldChange(p *card.Profile, field, newValue, variantName string, opts Options) (*Preview, error) {
	variant, err := VariantFor(variantName)
	if err != nil {
		return nil, err
	}
	modified, err := p.WithField(field, newValue)
	if err != nil {
		return nil, err
	}

	scan := c.scanProfile(p, opts)
	original, err := c.assemble(p, variant, scan, opts)
	if err != nil {
		return nil, err
	}

	modScan := scan
	if opts.Input == "" && field == card.FieldGreeting {
		modScan = c.scanProfile(modified, opts)
	}
	changed, err := c.assemble(modified, variant, modScan, opts)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Original:   original,
		Modified:   changed,
		TokenDelta: changed.TotalTokens - original.TotalTokens,
	}, nil
}
