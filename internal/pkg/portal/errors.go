package portal

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Portal errors
var (
	ErrInvalidCredentials = errors.New("the portal rejected the account or secret")
	ErrUnexpectedResponse = errors.New("the portal returned a page with an unknown shape")
)

type RequestErrorKind string

const (
	KindTimeout    RequestErrorKind = "timeout"
	KindConnection RequestErrorKind = "connection_failed"
	KindTLS        RequestErrorKind = "tls_failed"
)

// RequestError represents a transport-level failure talking to the
// portal. These are the only errors the client retries.
type RequestError struct {
	Kind RequestErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("portal request failed (%s): %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyRequestError wraps a transport error with its failure kind.
func classifyRequestError(err error) *RequestError {
	var (
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
	)
	switch {
	case errors.As(err, &certErr), errors.As(err, &recordErr),
		errors.As(err, &unknownAuth), errors.As(err, &hostErr):
		return &RequestError{Kind: KindTLS, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{Kind: KindTimeout, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &RequestError{Kind: KindTimeout, Err: err}
	}

	return &RequestError{Kind: KindConnection, Err: err}
}
