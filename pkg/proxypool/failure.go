package proxypool

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
)

// FailureCause classifies why a proxy use or probe failed. Every cause
// counts identically toward eviction; the class exists for logging and
// the probe history.
type FailureCause int

const (
	CauseUnknown FailureCause = iota
	CauseProxyError
	CauseTLSError
	CauseConnectError
	CauseTimeout
	CauseBadStatus
	CauseSlowResponse
	CauseUnexpected
)

func (c FailureCause) String() string {
	switch c {
	case CauseProxyError:
		return "ProxyError"
	case CauseTLSError:
		return "TLSError"
	case CauseConnectError:
		return "ConnectError"
	case CauseTimeout:
		return "Timeout"
	case CauseBadStatus:
		return "BadStatus"
	case CauseSlowResponse:
		return "SlowResponse"
	case CauseUnexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// Classify maps an outbound request error onto the failure taxonomy. This is
// the single translation point for network errors; call sites never re-derive
// the classification themselves.
func Classify(err error) FailureCause {
	if err == nil {
		return CauseUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}

	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) {
		return CauseTLSError
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "proxyconnect"),
		strings.Contains(errStr, "socks connect"),
		strings.Contains(errStr, "proxy"):
		return CauseProxyError
	case strings.Contains(errStr, "tls"),
		strings.Contains(errStr, "certificate"):
		return CauseTLSError
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "no such host"):
		return CauseConnectError
	}

	return CauseUnexpected
}
