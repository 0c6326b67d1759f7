//go:build windows

package transport

import (
	"errors"
	"syscall"
)

func retryable(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
