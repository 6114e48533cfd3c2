package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// CatalogWatcher calls onChange whenever the catalog file is written,
// created, renamed or removed. The parent directory is watched, so editors
// and atomic renames that replace the file are picked up too.
type CatalogWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher

	mutex   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewCatalogWatcher(catalogPath string, onChange func()) (*CatalogWatcher, error) {
	absPath, err := filepath.Abs(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}

	return &CatalogWatcher{
		path:     absPath,
		onChange: onChange,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	if cw.running {
		return nil
	}

	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	cw.running = true

	go cw.run(ctx)
	log.Debugf("catalog watcher: watching %s", cw.path)
	return nil
}

// Stop ends the watch loop and releases the watcher. Safe to call more than once.
func (cw *CatalogWatcher) Stop() {
	cw.mutex.Lock()
	wasRunning := cw.running
	cw.running = false
	cw.mutex.Unlock()

	if wasRunning {
		close(cw.stopCh)
		<-cw.doneCh
	}
	if err := cw.watcher.Close(); err != nil {
		log.Errorf("catalog watcher: close: %s", err)
	}
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("catalog watcher: %s", err)
		}
	}
}

func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != cw.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	log.Infof("catalog changed [%s]: %s", event.Op, cw.path)
	cw.onChange()
}
