package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad %s", "input"), http.StatusBadRequest},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{AlreadyProcessed("done"), http.StatusBadRequest},
		{InsufficientInventory("empty"), http.StatusBadRequest},
		{Upstream("sms", errors.New("boom")), http.StatusInternalServerError},
		{Internal("db", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status(), string(tc.err.Kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("respond: %w", NotFound("SOS request not found"))

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindConflict))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("provider down")
	err := Upstream("Failed to send SMS via Twilio.", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "provider down")
}
