package locale

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// ManifestStore reads and persists the locale generation manifest.
type ManifestStore interface {
	Path() string
	Read() ([]byte, error)
	Write(ctx context.Context, content []byte) error
}

// OutcomeError carries a privileged outcome through an error return.
type OutcomeError struct {
	Outcome types.MutationOutcome
}

func (e *OutcomeError) Error() string {
	return e.Outcome.Message
}

// FileStore writes the manifest directly. The service must be able to
// write the manifest's directory, which in practice means running as root.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the manifest at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the manifest location.
func (s *FileStore) Path() string { return s.path }

// Read returns the manifest contents.
func (s *FileStore) Read() ([]byte, error) {
	return readManifest(s.path)
}

// Write replaces the manifest atomically, keeping its permissions.
func (s *FileStore) Write(_ context.Context, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".locale.gen-*")
	if err != nil {
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("write locale manifest %s: %w", s.path, err)
	}
	return nil
}

// ElevatedStore stages the new manifest in a private temp file and installs
// it over the original through the privilege broker.
type ElevatedStore struct {
	path       string
	elevator   Elevator
	installBin string
	tempDir    string
}

// NewElevatedStore creates a store that installs the manifest with
// "<broker> install -m 0644 <staged> <path>".
func NewElevatedStore(path string, elevator Elevator) *ElevatedStore {
	return &ElevatedStore{path: path, elevator: elevator, installBin: "install"}
}

// WithTempDir sets where staged manifests are written.
func (s *ElevatedStore) WithTempDir(dir string) *ElevatedStore {
	s.tempDir = dir
	return s
}

// Path returns the manifest location.
func (s *ElevatedStore) Path() string { return s.path }

// Read returns the manifest contents. The manifest is world readable, so
// reading needs no elevation.
func (s *ElevatedStore) Read() ([]byte, error) {
	return readManifest(s.path)
}

// Write installs content over the manifest. A refused or failed install is
// returned as an *OutcomeError.
func (s *ElevatedStore) Write(ctx context.Context, content []byte) error {
	tmp, err := os.CreateTemp(s.tempDir, "hostsync-locale.gen-*")
	if err != nil {
		return fmt.Errorf("stage locale manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("stage locale manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage locale manifest: %w", err)
	}
	// The broker runs as another user; it must be able to read the file
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("stage locale manifest: %w", err)
	}

	out := s.elevator.Run(ctx, s.installBin, "-m", "0644", tmpName, s.path)
	if !out.Succeeded {
		return &OutcomeError{Outcome: out}
	}
	return nil
}

func readManifest(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale manifest %s: %w", path, err)
	}
	return content, nil
}
