package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"bad request", BadRequestError(cause, "limit must be positive"), http.StatusBadRequest},
		{"not found", ResourceNotFoundError(nil, "holding"), http.StatusNotFound},
		{"dependency", DependencyError(cause, "ledger unavailable"), http.StatusBadGateway},
		{"general", GeneralError(cause), http.StatusInternalServerError},
		{"timeout", TimeoutError(context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var svcErr *ServiceError
			assert.True(t, errors.As(tt.err, &svcErr))
			assert.Equal(t, tt.code, svcErr.StatusCode())
		})
	}
}

func TestIsInternalError(t *testing.T) {
	assert.False(t, IsInternalError(BadRequestError(nil, "x")))
	assert.False(t, IsInternalError(ResourceNotFoundError(nil, "x")))
	assert.True(t, IsInternalError(DependencyError(nil, "x")))
	assert.True(t, IsInternalError(GeneralError(nil)))
	assert.True(t, IsInternalError(errors.New("plain")))
}

func TestIs_Wrapped(t *testing.T) {
	err := fmt.Errorf("get holding: %w", ResourceNotFoundError(nil, "holding not found"))
	assert.True(t, Is(err, CategoryResourceNotFound))
	assert.False(t, Is(err, CategoryDataError))
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := TimeoutError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "CategoryConnectionTimeout", CategoryConnectionTimeout.String())
}
