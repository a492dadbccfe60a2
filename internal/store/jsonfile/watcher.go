package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	debounceDelay   = 50 * time.Millisecond
	eventBufferSize = 100
)

// KeyEvent reports that the file for Key was rewritten.
type KeyEvent struct {
	Key       string
	Timestamp time.Time
}

// Watcher delivers change events for key files written by another process,
// e.g. a running sync loop updating "notification-store".
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher

	mu          sync.Mutex
	subscribers map[string][]chan KeyEvent // key ("" = all) -> channels
	debounce    map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher starts watching dir. The directory is created if it doesn't exist.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:         dir,
		watcher:     fw,
		subscribers: make(map[string][]chan KeyEvent),
		debounce:    make(map[string]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Watch returns a channel receiving events for key. An empty key matches every
// key. The channel is closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, key string) <-chan KeyEvent {
	ch := make(chan KeyEvent, eventBufferSize)

	w.mu.Lock()
	w.subscribers[key] = append(w.subscribers[key], ch)
	w.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			w.unsubscribe(key, ch)
		case <-w.ctx.Done():
		}
	}()

	return ch
}

// Close stops watching and closes all subscriber channels.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	for _, subs := range w.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	w.subscribers = make(map[string][]chan KeyEvent)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) unsubscribe(key string, ch chan KeyEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := w.subscribers[key]
	for i, sub := range subs {
		if sub == ch {
			w.subscribers[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(w.subscribers[key]) == 0 {
		delete(w.subscribers, key)
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Str("dir", w.dir).Msg("jsonfile watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Atomic writes land as Create/Rename of the final name.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, fileExt) {
		return
	}
	key := strings.TrimSuffix(name, fileExt)

	w.mu.Lock()
	if timer, exists := w.debounce[key]; exists {
		timer.Stop()
	}
	w.debounce[key] = time.AfterFunc(debounceDelay, func() {
		w.notify(key)
	})
	w.mu.Unlock()
}

func (w *Watcher) notify(key string) {
	event := KeyEvent{Key: key, Timestamp: time.Now()}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, pattern := range []string{key, ""} {
		for _, ch := range w.subscribers[pattern] {
			select {
			case ch <- event:
			default:
				// Subscriber is behind; it will re-read the file on the next event.
			}
		}
	}

	delete(w.debounce, key)
}
