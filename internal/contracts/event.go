package contracts

import "strings"

// DefaultSource is used when an event arrives without a source
const DefaultSource = "Manual Input"

// Event is the input to every run. Immutable once the run starts.
// ⭐ SSOT: 파이프라인 입력 이벤트
type Event struct {
	Headline string `json:"headline" yaml:"headline" validate:"required,max=500"`
	Ticker   string `json:"ticker" yaml:"ticker" validate:"required,max=10"`
	Source   string `json:"source" yaml:"source" default:"Manual Input" validate:"max=100"`
}

// Normalize returns a copy with the ticker trimmed and upper-cased and the
// source defaulted
func (e Event) Normalize() Event {
	e.Headline = strings.TrimSpace(e.Headline)
	e.Ticker = strings.ToUpper(strings.TrimSpace(e.Ticker))
	e.Source = strings.TrimSpace(e.Source)
	if e.Source == "" {
		e.Source = DefaultSource
	}
	return e
}
