package daemon

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// Lock guards against two daemons sharing one working directory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes a non-blocking exclusive lock on path and records the
// holder's pid in it.
func AcquireLock(path string, pid int) (*Lock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s held by another process)", ErrAlreadyRunning, path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing pid to lock: %w", err)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
