package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OldStager01/press-downtime/internal/features"
)

type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Location() string {
	return filepath.Join(s.dir, ModelArtifact)
}

func (s *FileStore) Save(ctx context.Context, st *State) error {
	scaler, classifier, err := encode(st, features.Columns)
	if err != nil {
		return err
	}

	if err := s.writeAtomic(ScalerArtifact, scaler); err != nil {
		return err
	}
	return s.writeAtomic(ModelArtifact, classifier)
}

// writeAtomic replaces name via a temp file in the same directory so
// readers never see a partial artifact.
func (s *FileStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (*State, error) {
	scaler, err := os.ReadFile(filepath.Join(s.dir, ScalerArtifact))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoArtifacts
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler: %w", err)
	}

	classifier, err := os.ReadFile(filepath.Join(s.dir, ModelArtifact))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoArtifacts
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier: %w", err)
	}

	return decode(scaler, classifier)
}
