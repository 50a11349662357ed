package subtask

import (
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// classifyExchangeError maps an error raised after the connection was established.
func classifyExchangeError(err error) domain.FailureCategory {
	if isEarlyTermination(err) {
		return domain.EarlyTermination
	}
	return domain.Unexpected
}

func isEarlyTermination(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// isRemoteAlert returns true if the peer aborted a TLS handshake with an alert.
func isRemoteAlert(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
