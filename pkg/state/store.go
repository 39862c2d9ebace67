// Package state persists the installation record. The record's
// presence on disk is the sole source of truth for "kitup is
// installed"; every mutation goes through Store so the atomic-write
// guarantee holds.
package state

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Store reads and writes the persisted installation record.
type Store interface {
	// Load returns the persisted record, or (nil, nil) when kitup is
	// not installed. A nil record is the authoritative "not installed"
	// signal, never an error.
	Load() (*types.InstallationRecord, error)

	// Save writes the record atomically (write-to-temp-then-rename) so
	// a crash mid-write never leaves a half-written record behind.
	Save(record types.InstallationRecord) error

	// Delete removes the persisted record. Idempotent.
	Delete() error

	// Path returns the record's on-disk location, for reporting.
	Path() string
}

type fileStore struct {
	fs   types.FS
	path string
}

// New creates a Store persisting to the given state file path.
func New(fs types.FS, path string) Store {
	return &fileStore{fs: fs, path: path}
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Load() (*types.InstallationRecord, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrPersistence, "failed to read installation record")
	}

	var record types.InstallationRecord
	if err := toml.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, errors.ErrPersistence, "installation record at %s is corrupt", s.path)
	}

	return &record, nil
}

func (s *fileStore) Save(record types.InstallationRecord) error {
	logger := logging.GetLogger("state")

	if record.SourceRoot == "" {
		return errors.New(errors.ErrInvalidInput, "installation record has no source root")
	}
	if _, err := s.fs.Stat(record.SourceRoot); err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "installation record source root %s does not exist", record.SourceRoot)
	}

	data, err := toml.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, errors.ErrPersistence, "failed to encode installation record")
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrPersistence, "failed to create state directory")
	}

	// Write to a temp file in the same directory, then rename over the
	// final path. Rename is atomic on the same filesystem, so readers
	// see either the old record or the new one, never a torn write.
	tmp := s.path + ".tmp"
	if err := s.fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrPersistence, "failed to write installation record")
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, errors.ErrPersistence, "failed to commit installation record")
	}

	logger.Debug().Str("path", s.path).Str("version", record.Version).Msg("Installation record saved")
	return nil
}

func (s *fileStore) Delete() error {
	err := s.fs.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrPersistence, "failed to delete installation record")
	}
	return nil
}
