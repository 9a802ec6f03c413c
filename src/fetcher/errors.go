package fetcher

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// Kind classifies fetch failures.
type Kind int

const (
	KindNone Kind = iota
	KindMissingInput
	KindTLS
	KindTransport
	KindEmptyResult
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingInput:
		return "missing_input"
	case KindTLS:
		return "tls"
	case KindTransport:
		return "transport"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// MissingInputError is returned when no URL was provided.
type MissingInputError struct{}

func (MissingInputError) Error() string { return "URL required" }

// TLSError reports a certificate validation failure.
type TLSError struct {
	URL string
	Err error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("SSL certificate verification failed for %s: %v", e.URL, e.Err)
}

func (e *TLSError) Unwrap() error { return e.Err }

// TransportError covers network failures, non-2xx responses and undecodable bodies.
// StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v for url: %s", e.Err, e.URL)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EmptyResultError reports a response that decoded to no rows or no columns.
type EmptyResultError struct {
	URL     string
	Rows    int
	Columns int
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no data returned by %s (rows=%d columns=%d)", e.URL, e.Rows, e.Columns)
}

// KindOf maps an error to its Kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var missing MissingInputError
	var tlsErr *TLSError
	var transport *TransportError
	var empty *EmptyResultError
	switch {
	case errors.As(err, &missing):
		return KindMissingInput
	case errors.As(err, &tlsErr):
		return KindTLS
	case errors.As(err, &transport):
		return KindTransport
	case errors.As(err, &empty):
		return KindEmptyResult
	default:
		return KindUnknown
	}
}

// isCertError reports whether err comes from certificate validation.
func isCertError(err error) bool {
	var verr *tls.CertificateVerificationError
	var unknown x509.UnknownAuthorityError
	var host x509.HostnameError
	var invalid x509.CertificateInvalidError
	var record tls.RecordHeaderError
	return errors.As(err, &verr) ||
		errors.As(err, &unknown) ||
		errors.As(err, &host) ||
		errors.As(err, &invalid) ||
		errors.As(err, &record)
}
