package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilStaysNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "loading"))
	assert.NoError(t, Wrapf(nil, "loading %s", "NIFTY"))
}

func TestWrapf_KeepsChain(t *testing.T) {
	err := Wrapf(sql.ErrNoRows, "loading instrument %s", "NIFTY")

	assert.EqualError(t, err, "loading instrument NIFTY: "+sql.ErrNoRows.Error())
	assert.True(t, Is(err, sql.ErrNoRows))
}

func TestAs_FindsDetectorError(t *testing.T) {
	err := Wrap(NewDetectorError("technical", "rsi", fmt.Errorf("boom")), "NIFTY")

	var de *DetectorError
	require.True(t, As(err, &de))
	assert.Equal(t, "rsi", de.Detector)
	assert.True(t, Is(err, ErrDetectorFailed))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsConfig(Wrap(NewConfigError("mode", "x", "unknown"), "reset")))
	assert.True(t, IsUnavailable(Unavailable("%d bars", 3)))
	assert.False(t, IsUnavailable(ErrDataNotFound))
}
