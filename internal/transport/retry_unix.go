//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// retryable reports whether err is the "interrupted, try again" condition.
func retryable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}
