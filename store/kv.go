package store

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// FileKV keeps every key in one JSON object on disk and rewrites the file on each Set.
type FileKV struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, data: make(map[string]json.RawMessage)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kv, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(raw) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(raw, &kv.data); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if kv.data == nil {
		kv.data = make(map[string]json.RawMessage)
	}
	return kv, nil
}

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return errors.Errorf("value for %q is not valid JSON", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = append(json.RawMessage(nil), value...)

	out, err := json.MarshalIndent(f.data, "", "  ")
	if err == nil {
		err = os.WriteFile(f.path, out, 0o644)
	}
	if err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return errors.Wrapf(err, "write %s", f.path)
	}
	return nil
}
