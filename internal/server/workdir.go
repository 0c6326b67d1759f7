package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workdir is the server's current working directory: the one piece of state
// shared across connections. cd mutates it and every relative path in pwd,
// dir, get and put is resolved against it. The process directory itself is
// never changed.
type Workdir struct {
	mu  sync.RWMutex
	dir string
}

// NewWorkdir returns a handle rooted at dir, which must be an existing directory.
func NewWorkdir(dir string) (*Workdir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := checkDir(abs); err != nil {
		return nil, err
	}
	return &Workdir{dir: abs}, nil
}

// Get returns the current directory, failing if it has since disappeared.
func (w *Workdir) Get() (string, error) {
	w.mu.RLock()
	dir := w.dir
	w.mu.RUnlock()

	if err := checkDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Resolve makes p absolute relative to the current directory.
func (w *Workdir) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return filepath.Join(w.dir, p)
}

// Change moves the handle to p. An empty p names no directory.
func (w *Workdir) Change(p string) error {
	if p == "" {
		return fmt.Errorf("empty path: %w", os.ErrNotExist)
	}
	target := w.Resolve(p)
	if err := checkDir(target); err != nil {
		return err
	}
	w.mu.Lock()
	w.dir = target
	w.mu.Unlock()
	return nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	return nil
}

// String returns the current directory without checking it.
func (w *Workdir) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}
