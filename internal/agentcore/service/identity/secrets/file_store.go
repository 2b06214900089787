package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

// FileStore serves secrets from a JSON object file and reloads it when the
// file changes on disk.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	values  map[string]string
	watcher *fsnotify.Watcher
	onLoad  func()
	done    chan struct{}
}

// OpenFileStore loads path and starts watching its directory.
// onLoad, if set, runs after every successful reload.
func OpenFileStore(path string, onLoad func()) (*FileStore, error) {
	fs := &FileStore{path: path, onLoad: onLoad, done: make(chan struct{})}
	if err := fs.load(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create secret file watcher: %w", err)
	}
	// Watch the directory: editors and secret mounts replace files atomically.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	fs.watcher = w
	go fs.watch()
	return fs, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read secret file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse secret file %s: %w", f.path, err)
	}
	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

func (f *FileStore) watch() {
	target := filepath.Clean(f.path)
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if err := f.load(); err != nil {
				logger.WarnX("identity", "reload secret file failed, keeping previous values: %v", err)
				continue
			}
			logger.InfoX("identity", "secret file %s reloaded", f.path)
			if f.onLoad != nil {
				f.onLoad()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logger.WarnX("identity", "secret file watcher: %v", err)
		}
	}
}

func (f *FileStore) GetSecret(_ context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.values[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s not in %s", errno.ErrSecretNotFound, key, f.path)
}

func (f *FileStore) Close() error {
	select {
	case <-f.done:
		return nil
	default:
		close(f.done)
	}
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
