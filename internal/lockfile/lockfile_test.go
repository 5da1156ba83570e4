package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	lockPath := filepath.Join(stateDir, LockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("expected lock file at %s: %v", lockPath, err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("expected lock file to be removed after release")
	}

	// Release is safe to call twice.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release errored: %v", err)
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(stateDir); err != nil {
		t.Errorf("expected state directory to be created: %v", err)
	}
}

func TestExtractPIDFromLockInfo(t *testing.T) {
	if pid := extractPIDFromLockInfo("pid=1234\n"); pid != 1234 {
		t.Errorf("pid = %d, want 1234", pid)
	}
	if pid := extractPIDFromLockInfo("no pid here"); pid != 0 {
		t.Errorf("pid = %d, want 0 for missing info", pid)
	}
}
