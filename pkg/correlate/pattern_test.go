package correlate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "valid", raw: "FakeWaveform_{id}_truth.csv"},
		{name: "valid glob suffix", raw: "FakeWaveform_{id}*.root"},
		{name: "empty", raw: "", wantErr: ErrEmptyPattern},
		{name: "whitespace only", raw: "   ", wantErr: ErrEmptyPattern},
		{name: "no token", raw: "FakeWaveform_truth.csv", wantErr: ErrMissingIDToken},
		{name: "two tokens", raw: "{id}_{id}.csv", wantErr: ErrMissingIDToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePattern(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, p.String())
		})
	}
}

func TestPattern_Extract(t *testing.T) {
	p, err := ParsePattern("FakeWaveform_{id}_truth.csv")
	require.NoError(t, err)

	tests := []struct {
		name   string
		file   string
		wantID string
		wantOK bool
	}{
		{name: "match", file: "FakeWaveform_run042_truth.csv", wantID: "run042", wantOK: true},
		{name: "id with underscores", file: "FakeWaveform_a_b_c_truth.csv", wantID: "a_b_c", wantOK: true},
		{name: "wrong prefix", file: "RealWaveform_run042_truth.csv", wantOK: false},
		{name: "wrong suffix", file: "FakeWaveform_run042_processed.csv", wantOK: false},
		{name: "empty id", file: "FakeWaveform__truth.csv", wantOK: false},
		{name: "nothing between prefix and suffix", file: "FakeWaveform_truth.csv", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := p.Extract(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

func TestPattern_ResolveAndGlob(t *testing.T) {
	p, err := ParsePattern("FakeWaveform_{id}*.root")
	require.NoError(t, err)

	assert.Equal(t, "FakeWaveform_run042*.root", p.Resolve("run042"))
	assert.Equal(t, "FakeWaveform_**.root", p.Glob())
}
