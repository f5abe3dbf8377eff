package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{400, ErrorClassClient},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
		{504, ErrorClassGatewayTimeout},
		{200, ""},
		{304, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := ClassifyStatus(tt.status); got != tt.expected {
				t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestODataErrorMessage(t *testing.T) {
	err := &ODataError{
		StatusCode: 400,
		ErrorClass: ErrorClassClient,
		Message:    "400 Bad Request",
		Detail:     "invalid filter expression",
	}

	msg := err.Error()
	for _, fragment := range []string{"client", "400", "invalid filter expression"} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("error message %q missing %q", msg, fragment)
		}
	}
}

func TestODataErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &ODataError{StatusCode: 500, ErrorClass: ErrorClassServer, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the inner error")
	}
}

func TestClassHelpers(t *testing.T) {
	gateway := &ODataError{StatusCode: 504, ErrorClass: ErrorClassGatewayTimeout}
	fatal := &ODataError{StatusCode: 404, ErrorClass: ErrorClassClient}
	server := &ODataError{StatusCode: 500, ErrorClass: ErrorClassServer}
	network := errors.New("connection refused")

	if !IsGatewayTimeout(gateway) {
		t.Error("504 should be a gateway timeout")
	}
	if IsGatewayTimeout(server) {
		t.Error("500 should not be a gateway timeout")
	}

	if !IsFatal(fatal) {
		t.Error("404 should be fatal")
	}
	if IsFatal(server) || IsFatal(network) {
		t.Error("server/network errors should not be fatal")
	}

	if Class(network) != ErrorClassNetwork {
		t.Errorf("unclassified errors default to network, got %s", Class(network))
	}

	// Class works through wrapping.
	wrapped := fmt.Errorf("fetch page: %w", gateway)
	if Class(wrapped) != ErrorClassGatewayTimeout {
		t.Errorf("Class(wrapped) = %s", Class(wrapped))
	}
}

func TestShouldRetry(t *testing.T) {
	if shouldRetry(&ODataError{StatusCode: 500, ErrorClass: ErrorClassServer}) {
		t.Error("status errors must not be retried at transport level")
	}
	if !shouldRetry(errors.New("dial tcp: connection refused")) {
		t.Error("network errors must be retried at transport level")
	}
}
