package observability

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// Flush syncs buffered log entries before the process exits. Sync on a terminal
// or pipe reports EINVAL/ENOTTY on some platforms; those are not failures.
func Flush(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
