package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:   "error",
		EnvLogNoColor: "true",
	}
	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, zerolog.ErrorLevel, cfg.Level)
	assert.True(t, cfg.NoColor)
}

func TestApplyEnv_IgnoresGarbage(t *testing.T) {
	cfg := DefaultConfig(ProfileTest)
	ApplyEnv(&cfg, func(string) string { return "???" })

	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.NoColor)
}

func TestNewWithConfig_WritesAppField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithConfig("spiral-test", Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "app=spiral-test")
	assert.NotContains(t, out, "hidden")
}
