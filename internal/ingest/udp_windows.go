//go:build windows

package ingest

import (
	"errors"
	"syscall"
)

func isMessageTooLong(err error) bool {
	return errors.Is(err, syscall.WSAEMSGSIZE)
}
