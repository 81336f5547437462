package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/report/resource"
)

const watchDelay = 150 * time.Millisecond

// resourceDirs are the per-kind subdirectories a search path may carry.
var resourceDirs = []string{"templates", "fonts", "images"}

// debouncer groups bursts of change notifications per path and hands them
// over once no new change arrived for delay.
type debouncer struct {
	delay   time.Duration
	fire    func(paths []string)
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func newDebouncer(delay time.Duration, fire func(paths []string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, pending: make(map[string]struct{})}
}

func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[path] = struct{}{}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.flush)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	d.fire(paths)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// watcher maps file changes back onto cached resources.
type watcher struct {
	roots    []string
	dataPath string
	outPath  string
}

func newWatcher(j *job, searchPaths []string) *watcher {
	w := &watcher{}
	for _, p := range searchPaths {
		if resource.IsURL(p) {
			continue
		}
		w.roots = append(w.roots, normalizePath(p))
	}
	if j.dataPath != "" && j.dataPath != "-" && !strings.Contains(j.dataPath, "://") {
		w.dataPath = normalizePath(j.dataPath)
	}
	if j.outPath != "" {
		w.outPath = normalizePath(j.outPath)
	}
	return w
}

// dirs lists the directories to subscribe to. Missing ones are skipped.
func (w *watcher) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(dir string) {
		if seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
		out = append(out, dir)
	}
	for _, root := range w.roots {
		add(root)
		for _, sub := range resourceDirs {
			add(filepath.Join(root, sub))
		}
	}
	if w.dataPath != "" {
		add(filepath.Dir(w.dataPath))
	}
	return out
}

// ignored reports whether path is the rendered output or one of its
// temporary files.
func (w *watcher) ignored(path string) bool {
	if w.outPath == "" {
		return false
	}
	if path == w.outPath {
		return true
	}
	base := filepath.Base(w.outPath)
	return filepath.Dir(path) == filepath.Dir(w.outPath) &&
		strings.HasPrefix(filepath.Base(path), "."+base+".")
}

// relative returns path relative to the first search root containing it,
// in the slash form the resource cache records.
func (w *watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// apply evicts what the changed paths invalidate. It reports whether
// anything the render depends on changed.
func (w *watcher) apply(j *job, paths []string) bool {
	changed := false
	for _, p := range paths {
		if p == w.dataPath {
			changed = true
			continue
		}
		rel, ok := w.relative(p)
		if !ok {
			continue
		}
		n := j.engine.EvictPath(rel)
		j.logger.Debug("resource changed", "path", rel, "evicted", n)
		changed = true
	}
	return changed
}

func watch(ctx context.Context, j *job, searchPaths []string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	w := newWatcher(j, searchPaths)
	dirs := w.dirs()
	if len(dirs) == 0 {
		return fmt.Errorf("nothing to watch; set --search-path or --data")
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	j.logger.Info("watching", "dirs", dirs)

	batches := make(chan []string, 1)
	d := newDebouncer(watchDelay, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if w.ignored(path) {
				continue
			}
			d.add(path)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			j.logger.Warn("watch error", "error", err)
		case paths := <-batches:
			if !w.apply(j, paths) {
				continue
			}
			if err := j.render(ctx); err != nil {
				fmt.Fprintln(j.stderr, describe(err))
			}
		}
	}
}
