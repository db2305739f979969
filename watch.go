package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// contentWatcher follows the toc and document folders and turns file system
// events into tree_changed / document_changed notifications.
type contentWatcher struct {
	mu      sync.Mutex
	current *fsnotify.Watcher
	cancel  context.CancelFunc
}

// watchedDirs returns the folders whose changes affect the tree or an open
// document.
func watchedDirs(repo content.Repository) []string {
	dirs := []string{repo.TOCDir()}
	for _, k := range content.Kinds {
		dirs = append(dirs, repo.DocumentDir(k))
	}
	return dirs
}

// start replaces any running watcher with one following repo. Missing
// folders are skipped with a warning.
func (m *contentWatcher) start(repo content.Repository, publish func(eventMessage)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	added := 0
	for _, dir := range watchedDirs(repo) {
		if err := watcher.Add(dir); err != nil {
			log.Printf("Warning: Cannot watch directory %s: %v", dir, err)
			continue
		}
		added++
	}
	if added == 0 {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Printf("Failed to close watcher: %v", closeErr)
		}
		return fmt.Errorf("no content folders to watch below %s", repo.Root)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.current = watcher
	m.cancel = cancel
	go watchContentWithContext(ctx, watcher, repo, publish)
	return nil
}

func (m *contentWatcher) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}

func (m *contentWatcher) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// classifyEvent maps a file system event to the notification it causes, if
// any.
func classifyEvent(repo content.Repository, event fsnotify.Event) (eventMessage, bool) {
	name := event.Name
	ext := strings.ToLower(filepath.Ext(name))
	dir := filepath.Dir(name)
	structural := event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0

	switch {
	case dir == repo.TOCDir() && ext == ".json":
		if structural || event.Op&fsnotify.Write != 0 {
			return eventMessage{Type: eventTreeChanged, Path: name}, true
		}
	case ext == ".md":
		if structural {
			return eventMessage{Type: eventTreeChanged, Path: name}, true
		}
		if event.Op&fsnotify.Write != 0 {
			return eventMessage{Type: eventDocumentChanged, Path: documentURL(repo, name)}, true
		}
	}
	return eventMessage{}, false
}

func watchContentWithContext(ctx context.Context, watcher *fsnotify.Watcher, repo content.Repository, publish func(eventMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if msg, ok := classifyEvent(repo, event); ok {
				log.Printf("Content changed: %s (%s)", event.Name, event.Op)
				publish(msg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Directory watcher error: %v", err)
		}
	}
}

// documentURL maps a document path to its /doc URL, or returns the path
// unchanged when it is not below a document folder.
func documentURL(repo content.Repository, path string) string {
	for _, k := range content.Kinds {
		if filepath.Dir(path) == repo.DocumentDir(k) {
			return "/doc/" + string(k) + "/" + url.PathEscape(content.Stem(path))
		}
	}
	return path
}
