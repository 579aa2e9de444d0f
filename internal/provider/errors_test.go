package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{
			name: "deadline",
			err:  fmt.Errorf("request: %w", context.DeadlineExceeded),
			kind: KindTransport,
		},
		{
			name: "url error",
			err:  &url.Error{Op: "Get", URL: "https://api.example", Err: errors.New("connection refused")},
			kind: KindTransport,
		},
		{
			name: "dial error",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")},
			kind: KindTransport,
		},
		{
			name: "provider refusal",
			err:  errors.New("Invalid access token (9109)"),
			kind: KindRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap("update", tt.err)
			var perr *Error
			assert.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, "update", perr.Op)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.kind == KindTransport, IsTransport(err))
			assert.Equal(t, tt.kind == KindRejected, IsRejected(err))
		})
	}
}

func TestWrapKeepsExisting(t *testing.T) {
	orig := &Error{Op: "list zones", Kind: KindRejected, Err: errors.New("forbidden")}
	assert.Same(t, orig, Wrap("update", orig))
	assert.Nil(t, Wrap("update", nil))
}
