package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// File is a disk-backed Store: one JSON file per conversation under a
// base directory, written atomically and guarded by flock so concurrent
// processes sharing a history directory do not corrupt each other.
//
// The Store interface has no error returns, so I/O failures are logged
// and treated as an empty or unwritten conversation.
type File struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*fileLock
}

// conversationFile is the on-disk envelope. The key is stored inside the
// file because filenames are hashed.
type conversationFile struct {
	Key      string          `json:"key"`
	Messages []types.Message `json:"messages"`
}

// NewFile creates a disk-backed store rooted at basePath. The directory
// is created on first write.
func NewFile(basePath string) *File {
	return &File{basePath: basePath, locks: make(map[string]*fileLock)}
}

// Get returns the stored conversation, nil when absent or unreadable.
func (f *File) Get(key string) []types.Message {
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Msg("store: read conversation")
		}
		return nil
	}

	var envelope conversationFile
	if err := json.Unmarshal(data, &envelope); err != nil {
		logging.Warn().Err(err).Msg("store: decode conversation")
		return nil
	}
	return envelope.Messages
}

// Set replaces the stored conversation.
func (f *File) Set(key string, messages []types.Message) {
	path := f.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.Warn().Err(err).Msg("store: create history directory")
		return
	}

	lock := f.lockFor(path)
	if err := lock.acquire(); err != nil {
		logging.Warn().Err(err).Msg("store: lock conversation")
		return
	}
	defer lock.release()

	data, err := json.MarshalIndent(conversationFile{
		Key:      key,
		Messages: types.CloneMessages(messages),
	}, "", "  ")
	if err != nil {
		logging.Warn().Err(err).Msg("store: encode conversation")
		return
	}

	// Temp file plus rename keeps readers from seeing a partial write.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		logging.Warn().Err(err).Msg("store: write conversation")
		return
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		logging.Warn().Err(err).Msg("store: replace conversation")
	}
}

// Keys lists the stored conversation keys.
func (f *File) Keys() []string {
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.basePath, entry.Name()))
		if err != nil {
			continue
		}
		var envelope conversationFile
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}
		keys = append(keys, envelope.Key)
	}
	return keys
}

// pathFor hashes the key into a filename; keys contain URLs and are not
// filesystem safe.
func (f *File) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.basePath, fmt.Sprintf("%x.json", sum[:16]))
}

func (f *File) lockFor(path string) *fileLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[path]
	if !ok {
		lock = &fileLock{path: path}
		f.locks[path] = lock
	}
	return lock
}

// fileLock serializes writers across processes with flock.
type fileLock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func (l *fileLock) acquire() error {
	l.mu.Lock()

	file, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		file.Close()
		l.mu.Unlock()
		return err
	}

	l.file = file
	return nil
}

func (l *fileLock) release() {
	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		os.Remove(l.path + ".lock")
		l.file = nil
	}
	l.mu.Unlock()
}
