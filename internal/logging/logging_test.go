package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInit_JSONDefault(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "", &buf)

	New("cluster").Info("clustered test", "failures", 3)

	out := buf.String()
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"component":"cluster"`)
	assert.Contains(t, out, `"failures":3`)
}

func TestInit_Text(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	New("render").Info("rendered")

	assert.Contains(t, buf.String(), "component=render")
}

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	New("gate").Info("suppressed")
	New("gate").Warn("shown")

	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "shown")
}
