package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusRequestEntityTooLarge, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := StatusError("question", tt.status, "boom")
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsPermanent(err))

			var genErr *Error
			assert.True(t, errors.As(err, &genErr))
			assert.Equal(t, tt.status, genErr.StatusCode)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestTransportError(t *testing.T) {
	ctx := context.Background()

	t.Run("connection failures are transient", func(t *testing.T) {
		for _, cause := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, io.ErrUnexpectedEOF, context.DeadlineExceeded} {
			err := TransportError(ctx, "answer", fmt.Errorf("api call: %w", cause))
			assert.True(t, IsTransient(err), "cause %v", cause)
		}
	})

	t.Run("unknown failures are permanent", func(t *testing.T) {
		err := TransportError(ctx, "answer", errors.New("unsupported protocol scheme"))
		assert.True(t, IsPermanent(err))
	})

	t.Run("caller cancellation is not classified", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := TransportError(cctx, "answer", fmt.Errorf("api call: %w", context.Canceled))
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsTransient(err))
		assert.False(t, IsPermanent(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, TransportError(ctx, "answer", nil))
	})
}
