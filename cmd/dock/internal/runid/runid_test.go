package runid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		id := New(time.Now())
		assert.Len(t, id, 26)
		assert.NoError(t, Validate(id))
	})

	t.Run("unique", func(t *testing.T) {
		now := time.Now()
		assert.NotEqual(t, New(now), New(now), "expected unique ids for the same instant")
	})

	t.Run("sortable", func(t *testing.T) {
		a := New(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
		b := New(time.Date(2025, 1, 15, 12, 0, 1, 0, time.UTC))
		assert.Less(t, a, b)
	})
}

func TestTime(t *testing.T) {
	at := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	got, err := Time(New(at))
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), got.UnixMilli())
}

func TestValidate_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"too-short",
		strings.Repeat("U", 26),
		strings.Repeat("0", 27),
	} {
		assert.ErrorIs(t, Validate(s), ErrInvalid, "Validate(%q)", s)
	}
}
