package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradecraft/internal/contracts"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	samples, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), samples)
	require.Len(t, samples, 3)
	assert.Equal(t, "NVDA", samples[2].Ticker)
}

func TestLoadRepoFile(t *testing.T) {
	samples, err := Load(filepath.Join("..", "..", "config", "events.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), samples)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    []Sample
		wantErr bool
	}{
		{
			name: "normalizes and defaults source",
			yaml: "events:\n  - id: E1\n    headline: \" TSLA recalls \"\n    ticker: tsla\n",
			want: []Sample{{ID: "E1", Event: contracts.Event{
				Headline: "TSLA recalls", Ticker: "TSLA", Source: contracts.DefaultSource,
			}}},
		},
		{
			name:    "unknown field",
			yaml:    "events:\n  - id: E1\n    headline: h\n    ticker: T\n    tickr: X\n",
			wantErr: true,
		},
		{
			name:    "missing ticker",
			yaml:    "events:\n  - id: E1\n    headline: h\n",
			wantErr: true,
		},
		{
			name:    "duplicate id",
			yaml:    "events:\n  - {id: E1, headline: a, ticker: A}\n  - {id: E1, headline: b, ticker: B}\n",
			wantErr: true,
		},
		{
			name:    "empty",
			yaml:    "events: []\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.yaml")
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	s, ok := Find(Defaults(), "EVT-002")
	require.True(t, ok)
	assert.Equal(t, "SPY", s.Ticker)

	_, ok = Find(Defaults(), "nope")
	assert.False(t, ok)
}
