package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"

	"github.com/valyala/fasthttp"
)

// Error codes attached to failed responses.
const (
	ErrCodeGeneric           = 1000
	ErrCodeTimeout           = 1050
	ErrCodeCanceled          = 1060
	ErrCodeDNS               = 1100
	ErrCodeDial              = 1200
	ErrCodeConnectionRefused = 1210
	ErrCodeConnectionReset   = 1220
	ErrCodeTLS               = 1300
	ErrCodeInvalidRequest    = 1400
)

// ClassifyError maps a transport error to an error code.
func ClassifyError(err error) int {
	if err == nil {
		return 0
	}

	var (
		dnsErr  *net.DNSError
		opErr   *net.OpError
		certErr *tls.CertificateVerificationError
		unkAuth x509.UnknownAuthorityError
		netErr  net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, fasthttp.ErrTimeout):
		return ErrCodeTimeout
	case errors.As(err, &dnsErr):
		return ErrCodeDNS
	case errors.As(err, &certErr), errors.As(err, &unkAuth):
		return ErrCodeTLS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrCodeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrCodeConnectionReset
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrCodeTimeout
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return ErrCodeDial
	}
	return ErrCodeGeneric
}
