package run

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock is the exclusive per-project run lock at .devflow/locks/run.lock.
type Lock struct {
	file *os.File
}

// AcquireLock blocks until the run lock is held.
func AcquireLock(devflowDir string) (*Lock, error) {
	file, err := openLockFile(devflowDir)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("lock run.lock: %w", err)
	}
	return &Lock{file: file}, nil
}

// TryAcquireLock takes the run lock if it is free. ok is false when another
// run holds it.
func TryAcquireLock(devflowDir string) (lock *Lock, ok bool, err error) {
	file, err := openLockFile(devflowDir)
	if err != nil {
		return nil, false, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, false, nil
	}
	return &Lock{file: file}, true, nil
}

// Release releases the lock. It is safe on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func openLockFile(devflowDir string) (*os.File, error) {
	locksDir := filepath.Join(devflowDir, "locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create locks dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(locksDir, "run.lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return file, nil
}
