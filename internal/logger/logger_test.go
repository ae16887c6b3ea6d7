package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestGetForComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := GetForComponent("rebalancer")
	l.Info().Str("pool", "1").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rebalancer", line["component"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "1", line["pool"])
}
