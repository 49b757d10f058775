package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFromContext_ReturnsCarriedLogger(t *testing.T) {
	var carried, fallback bytes.Buffer
	ctx := WithLogger(context.Background(), WithSymbol(zerolog.New(&carried), "NIFTY"))

	l := FromContext(ctx, zerolog.New(&fallback))
	l.Info().Msg("scanned")

	assert.Contains(t, carried.String(), `"symbol":"NIFTY"`)
	assert.Contains(t, carried.String(), "scanned")
	assert.Empty(t, fallback.String())
}

func TestFromContext_FallsBackWhenEmpty(t *testing.T) {
	var fallback bytes.Buffer

	l := FromContext(context.Background(), zerolog.New(&fallback))
	l.Info().Msg("scanned")

	assert.Contains(t, fallback.String(), "scanned")
}

func TestFromContext_IgnoresDisabledLogger(t *testing.T) {
	var fallback bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.Nop())

	l := FromContext(ctx, zerolog.New(&fallback))
	l.Info().Msg("scanned")

	assert.Contains(t, fallback.String(), "scanned")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}
