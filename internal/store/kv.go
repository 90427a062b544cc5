package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// KV is a small file-backed key-value store standing in for browser
// local storage: one JSON object per file, string keys, raw JSON values.
// Every Set writes the whole file back atomically.
type KV struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// OpenKV loads the KV file at path. A missing or unparseable file yields
// an empty store; the caller never sees a startup error from state that
// can simply be regrown.
func OpenKV(path string) *KV {
	kv := &KV{path: path, data: map[string]json.RawMessage{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		return kv
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return kv
	}
	kv.data = data
	return kv
}

// Path returns the backing file path.
func (kv *KV) Path() string {
	return kv.path
}

// Get returns the raw JSON stored under key, or false if absent.
func (kv *KV) Get(key string) (json.RawMessage, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok
}

// Set stores value under key and writes the file through to disk.
func (kv *KV) Set(key string, value json.RawMessage) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return kv.flushLocked()
}

// Reload re-reads the backing file, replacing in-memory contents.
// Used by the file watcher when the file changes underneath us.
func (kv *KV) Reload() error {
	raw, err := os.ReadFile(kv.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			kv.mu.Lock()
			kv.data = map[string]json.RawMessage{}
			kv.mu.Unlock()
			return nil
		}
		return err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	kv.mu.Lock()
	kv.data = data
	kv.mu.Unlock()
	return nil
}

// flushLocked writes the store atomically: temp file in the same
// directory, fsync, chmod 0600, rename. Mirrors how the config file is
// saved.
func (kv *KV) flushLocked() error {
	dir := filepath.Dir(kv.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	raw, err := json.Marshal(kv.data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwidget-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, kv.path)
}
