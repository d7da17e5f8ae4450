// Package diskspace reports free space on the filesystem holding a path and
// refuses writes when it falls below a configured floor.
package diskspace

import (
	"fmt"

	"github.com/eegstream/eegstream-go/internal/errors"
)

// MiB is one mebibyte in bytes
const MiB uint64 = 1 << 20

// ErrInsufficientSpace is wrapped when free space is below the required minimum
var ErrInsufficientSpace = errors.NewStd("insufficient disk space")

// Free returns the bytes available to unprivileged users on the filesystem
// holding path. The path must exist.
func Free(path string) (uint64, error) {
	free, err := getDiskFreeSpace(path)
	if err != nil {
		return 0, errors.New(fmt.Errorf("failed to read free disk space: %w", err)).
			Component("diskspace").
			Category(errors.CategorySystem).
			Context("path", path).
			Build()
	}
	return free, nil
}

// Check returns an error wrapping ErrInsufficientSpace when fewer than
// minFree bytes are available at path. A zero minimum disables the check.
func Check(path string, minFree uint64) error {
	if minFree == 0 {
		return nil
	}
	free, err := Free(path)
	if err != nil {
		return err
	}
	if free < minFree {
		return errors.New(fmt.Errorf("%w: %d MiB free, %d MiB required",
			ErrInsufficientSpace, free/MiB, minFree/MiB)).
			Component("diskspace").
			Category(errors.CategoryResource).
			Context("path", path).
			Context("free_bytes", free).
			Context("required_bytes", minFree).
			Build()
	}
	return nil
}
