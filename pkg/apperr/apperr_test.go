package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("Order")
	wrapped := fmt.Errorf("load: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("Failed to create order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to create order", err.Message)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusUnprocessableEntity,
		KindNotFound:       http.StatusNotFound,
		KindPersistence:    http.StatusInternalServerError,
		KindAuthentication: http.StatusUnauthorized,
		KindForbidden:      http.StatusForbidden,
		KindConflict:       http.StatusConflict,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind.String())
	}
}

func TestInvalidField(t *testing.T) {
	err := InvalidField("status", "The selected status is invalid.")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, map[string]string{"status": "The selected status is invalid."}, err.Fields)
}
