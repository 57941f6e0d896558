package kv

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/NebulousLabs/errors"
)

// FilesystemStore persists every key as its own file under a base
// directory, writing via tmp-file-then-rename so a reader never
// observes a partial write. It has no TTL support. Keys are hex-encoded
// into filenames since they are binary-safe but filenames are not.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore opens (creating if needed) a filesystem-backed KV
// store rooted at baseDir.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.AddContext(err, "unable to create kv base directory")
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

func (f *FilesystemStore) path(key []byte) string {
	return filepath.Join(f.baseDir, hex.EncodeToString(key))
}

func (f *FilesystemStore) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	b, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.AddContext(err, "unable to read kv record")
	}
	return b, true, nil
}

func (f *FilesystemStore) Has(_ context.Context, key []byte) (bool, error) {
	_, err := os.Stat(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.AddContext(err, "unable to stat kv record")
	}
	return true, nil
}

func (f *FilesystemStore) Set(_ context.Context, key, value []byte, allowOverwrite bool, _ time.Duration) error {
	target := f.path(key)
	if !allowOverwrite {
		if _, err := os.Stat(target); err == nil {
			return ErrWriteOnce(key)
		}
	}

	tmp, err := os.CreateTemp(f.baseDir, "kv-tmp-*")
	if err != nil {
		return errors.AddContext(err, "unable to create kv tmp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.AddContext(err, "unable to write kv tmp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.AddContext(err, "unable to close kv tmp file")
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.AddContext(err, "unable to rename kv tmp file into place")
	}
	return nil
}

func (f *FilesystemStore) Del(_ context.Context, key []byte) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.AddContext(err, "unable to delete kv record")
	}
	return nil
}

func (f *FilesystemStore) Close() error { return nil }
