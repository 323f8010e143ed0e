package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := NotFound("alert", "a-1")
	wrapped := fmt.Errorf("handler: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestInvalidStatusIsValidation(t *testing.T) {
	err := InvalidStatus("bogus")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, Is(err, ErrInvalidStatus))
	assert.Contains(t, err.Error(), "bogus")
}

func TestStoreFailureKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := StoreFailure("store.Gorm.CreateAlert", cause)
	require.NotNil(t, err)
	assert.Equal(t, KindStoreFailure, err.Kind)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, Cause(err))
	assert.Nil(t, StoreFailure("op", nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindForbidden:    http.StatusForbidden,
		KindInvalidState: http.StatusConflict,
		KindStoreFailure: http.StatusInternalServerError,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	orig := Forbidden("role %s", "tourist")
	extended := orig.WithContext("actor", "u-1")

	assert.Len(t, orig.Context, 0)
	require.Len(t, extended.Context, 1)
	assert.Equal(t, "actor", extended.Context[0].Key)
	assert.Equal(t, KindForbidden, extended.Kind)
}
