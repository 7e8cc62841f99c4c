package serve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// CertWatcher holds the CA certificate served at /api/ca and reloads it
// when the file changes on disk.
type CertWatcher struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	cert string
}

// NewCertWatcher loads the certificate at path.
func NewCertWatcher(path string, logger *zap.Logger) (*CertWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	cw := &CertWatcher{path: abs, logger: logger}
	if err := cw.Reload(); err != nil {
		return nil, err
	}
	return cw, nil
}

// Certificate returns the current certificate text.
func (cw *CertWatcher) Certificate() string {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.cert
}

// Path returns the watched file.
func (cw *CertWatcher) Path() string {
	return cw.path
}

// Reload rereads the certificate. On error the previous certificate is kept.
func (cw *CertWatcher) Reload() error {
	data, err := os.ReadFile(cw.path)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate %s: %w", cw.path, err)
	}

	cw.mu.Lock()
	cw.cert = string(data)
	cw.mu.Unlock()
	return nil
}

// Run watches the certificate until ctx is cancelled. The parent directory
// is watched so that atomic replaces (write to temp, rename) are seen.
func (cw *CertWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(cw.path), err)
	}
	cw.logger.Debug("watching CA certificate", zap.String("path", cw.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			cw.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cw.logger.Warn("certificate watcher error", zap.Error(err))
		}
	}
}

func (cw *CertWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	if err := cw.Reload(); err != nil {
		cw.logger.Warn("keeping previous CA certificate", zap.Error(err))
		return
	}
	cw.logger.Info("reloaded CA certificate", zap.String("path", cw.path))
}
