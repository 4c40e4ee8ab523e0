package errors_test

import (
	"fmt"
	"testing"

	errs "github.com/jrsteele09/go-booking-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, errs.Wrapf(nil, "load %s", "user"))

	err := errs.Wrapf(errs.ErrNotFound, "load %s", "user")
	require.EqualError(t, err, "load user: not found")
	require.True(t, errs.Is(err, errs.ErrNotFound))
	require.False(t, errs.Is(err, errs.ErrDecode))
}

type statusErr struct{ status int }

func (e *statusErr) Error() string { return fmt.Sprintf("status %d", e.status) }

func TestAs(t *testing.T) {
	err := errs.Wrapf(&statusErr{status: 401}, "refresh")
	var target *statusErr
	require.True(t, errs.As(err, &target))
	require.Equal(t, 401, target.status)
}
