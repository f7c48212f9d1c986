// Package events loads the sample market events offered by the API, the CLI
// and the sample_replay job.
package events

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wonny/tradecraft/internal/contracts"
)

// Sample is one named event
type Sample struct {
	ID              string `json:"id" yaml:"id" validate:"required"`
	contracts.Event `yaml:",inline"`
}

// File is the events YAML document
type File struct {
	Events []Sample `yaml:"events"`
}

// Defaults returns the built-in samples
func Defaults() []Sample {
	return []Sample{
		{
			ID: "EVT-001",
			Event: contracts.Event{
				Headline: "AAPL warns of 6-8 week supply chain delays due to Taiwan fab disruption.",
				Ticker:   "AAPL",
				Source:   "Reuters",
			},
		},
		{
			ID: "EVT-002",
			Event: contracts.Event{
				Headline: "Fed minutes signal two additional rate hikes; inflation stickier than expected.",
				Ticker:   "SPY",
				Source:   "Federal Reserve",
			},
		},
		{
			ID: "EVT-003",
			Event: contracts.Event{
				Headline: "NVDA beats earnings by 18%; data center revenue up 3x YoY.",
				Ticker:   "NVDA",
				Source:   "NASDAQ Filing",
			},
		},
	}
}

// Load reads the events file. A missing file yields Defaults.
// KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an events document
func Parse(data []byte) ([]Sample, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode events file: %w", err)
	}
	if len(file.Events) == 0 {
		return nil, fmt.Errorf("events file has no events")
	}

	validate := validator.New()
	seen := make(map[string]bool, len(file.Events))
	samples := make([]Sample, 0, len(file.Events))

	for i, sample := range file.Events {
		sample.Event = sample.Event.Normalize()
		if err := validate.Struct(sample); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if seen[sample.ID] {
			return nil, fmt.Errorf("event %d: duplicate id %q", i, sample.ID)
		}
		seen[sample.ID] = true
		samples = append(samples, sample)
	}

	return samples, nil
}

// Find returns the sample with id
func Find(samples []Sample, id string) (Sample, bool) {
	for _, s := range samples {
		if s.ID == id {
			return s, true
		}
	}
	return Sample{}, false
}
