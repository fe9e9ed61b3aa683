// Package tracker holds the failure taxonomy shared by the issue tracker clients.
package tracker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// Kind classifies how an outbound tracker call failed.
type Kind int

const (
	// KindUnexpected is any failure that is not one of the kinds below.
	KindUnexpected Kind = iota
	// KindRejected means the tracker answered with a non-success status.
	KindRejected
	// KindTimeout means the call exceeded its deadline.
	KindTimeout
	// KindUnreachable means no connection could be established.
	KindUnreachable
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	default:
		return "unexpected"
	}
}

// Error is returned by tracker clients for every failed call.
type Error struct {
	Kind Kind

	// Service names the remote platform (e.g., "GitHub").
	Service string

	// Op is the operation that failed (e.g., "list issues").
	Op string

	// StatusCode and Body are set for KindRejected.
	StatusCode int
	Body       []byte

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindRejected {
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Service, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Kind)
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected builds a KindRejected error from a received response.
// The response body is read and closed.
func Rejected(service, op string, resp *http.Response) *Error {
	e := &Error{
		Kind:       KindRejected,
		Service:    service,
		Op:         op,
		StatusCode: resp.StatusCode,
	}
	if resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close() // nolint:errcheck
		if err == nil {
			e.Body = body
		}
	}
	return e
}

// Classify turns the outcome of an outbound call into an *Error.
// resp is the HTTP response, if one was received. A received non-2xx response
// means the tracker rejected the call; a 2xx response paired with an error
// (e.g., an undecodable body) is unexpected.
func Classify(service, op string, resp *http.Response, err error) *Error {
	if resp != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Rejected(service, op, resp)
		}
		return &Error{Kind: KindUnexpected, Service: service, Op: op, Err: err}
	}

	kind := KindUnexpected
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &opErr), errors.As(err, &dnsErr), isTLSFailure(err):
		kind = KindUnreachable
	}

	return &Error{Kind: kind, Service: service, Op: op, Err: err}
}

// isTLSFailure reports whether err is a failed TLS handshake or certificate check.
func isTLSFailure(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// Unexpectedf builds a KindUnexpected error with a formatted cause.
func Unexpectedf(service, op, format string, args ...any) *Error {
	return &Error{Kind: KindUnexpected, Service: service, Op: op, Err: fmt.Errorf(format, args...)}
}
