// Package runid identifies one launch of the runtime. A run id is a ULID:
// 26 characters, sortable by the time the launch started.
package runid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalid indicates that a run id is malformed
var ErrInvalid = errors.New("invalid run id")

// New returns a run id stamped with t.
func New(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Validate checks that s is a well-formed run id.
func Validate(s string) error {
	if len(s) != ulid.EncodedSize {
		return fmt.Errorf("%w: expected %d characters, got %d", ErrInvalid, ulid.EncodedSize, len(s))
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Time returns the launch time encoded in s, at millisecond precision.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ulid.Time(id.Time()), nil
}
