// Package tokens provides token estimation for budget management.
// Estimation is heuristic, calibrated per model family; lorekit never does
// real token encoding. Estimators must be deterministic and safe for
// concurrent use.
package tokens

import "unicode/utf8"

// Estimator turns text into a non-negative token estimate.
type Estimator interface {
	Estimate(text string) int
}

// CharsEstimator estimates tokens from rune count with a chars-per-token
// ratio. English text averages ~4 chars per token; CJK closer to 1.5.
type CharsEstimator struct {
	CharsPerToken float64
}

// NewCharsEstimator creates an estimator with the given ratio. Non-positive
// ratios fall back to the default 4.0.
func NewCharsEstimator(charsPerToken float64) *CharsEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharsEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for text. Empty text is 0;
// non-empty text is at least 1.
func (e *CharsEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(utf8.RuneCountInString(text)) / e.CharsPerToken)
	if n < 1 {
		return 1
	}
	return n
}

// calibrations maps model family prefixes to chars-per-token ratios.
var calibrations = map[string]float64{
	"default": 4.0,
	"claude":  4.0,
	"gpt":     4.0,
	"llama":   3.6,
	"cjk":     1.5,
}

// ForModel returns an estimator calibrated for the named model family.
// Unknown names get the default calibration.
func ForModel(name string) Estimator {
	if ratio, ok := calibrations[name]; ok {
		return NewCharsEstimator(ratio)
	}
	return NewCharsEstimator(calibrations["default"])
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(text string) int

// Estimate calls the wrapped function.
func (f EstimatorFunc) Estimate(text string) int { return f(text) }
