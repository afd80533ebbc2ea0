// Package window tracks the windows of the display layer. The registry is the
// backend's view of window state; every change is mirrored to the display
// layer as a "window" event so it can apply it to real surfaces.
package window

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"screen-snip/src/events"
)

// MirrorTarget receives window events.
const MirrorTarget = "window-manager"

// Emitter publishes mirrored window operations.
type Emitter interface {
	Emit(target, event, payload string) error
}

// State describes one registered window.
type State struct {
	Label   string  `json:"label"`
	URL     string  `json:"url,omitempty"`
	Visible bool    `json:"visible"`
	Focused bool    `json:"focused"`
	Overlay bool    `json:"overlay"`
	Handle  uintptr `json:"-"`
}

// Op is the payload of a mirrored window event.
type Op struct {
	Op    string `json:"op"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Registry is an in-memory window manager.
type Registry struct {
	mu      sync.Mutex
	windows map[string]*State
	mirror  Emitter
}

// NewRegistry registers the given host windows as visible. mirror may be nil.
func NewRegistry(mirror Emitter, hosts ...string) *Registry {
	r := &Registry{windows: make(map[string]*State), mirror: mirror}
	for _, label := range hosts {
		r.windows[label] = &State{Label: label, Visible: true}
	}
	return r
}

// Attach records the native handle of a window reported by the display layer.
func (r *Registry) Attach(label string, handle uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[label]
	if !ok {
		return fmt.Errorf("window %q not found", label)
	}
	w.Handle = handle
	return nil
}

func (r *Registry) Show(label string) error {
	return r.update("show", label, func(w *State) { w.Visible = true })
}

func (r *Registry) Hide(label string) error {
	return r.update("hide", label, func(w *State) {
		w.Visible = false
		w.Focused = false
	})
}

func (r *Registry) Focus(label string) error {
	return r.update("focus", label, func(w *State) {
		for _, other := range r.windows {
			other.Focused = false
		}
		w.Focused = true
	})
}

func (r *Registry) Close(label string) error {
	r.mu.Lock()
	if _, ok := r.windows[label]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("window %q not found", label)
	}
	delete(r.windows, label)
	r.mu.Unlock()
	return r.publish(Op{Op: "close", Label: label})
}

// CreateOverlay registers a visible, focused overlay. It is a no-op when the
// label already exists.
func (r *Registry) CreateOverlay(label, url string) error {
	r.mu.Lock()
	if _, ok := r.windows[label]; ok {
		r.mu.Unlock()
		return nil
	}
	for _, other := range r.windows {
		other.Focused = false
	}
	r.windows[label] = &State{Label: label, URL: url, Visible: true, Focused: true, Overlay: true}
	r.mu.Unlock()

	if err := r.publish(Op{Op: "create", Label: label, URL: url}); err != nil {
		r.mu.Lock()
		delete(r.windows, label)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Handle reports whether label exists and its native handle.
func (r *Registry) Handle(label string) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[label]
	if !ok {
		return 0, false
	}
	return w.Handle, true
}

// Windows returns a snapshot of all windows sorted by label.
func (r *Registry) Windows() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (r *Registry) update(op, label string, apply func(*State)) error {
	r.mu.Lock()
	w, ok := r.windows[label]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("window %q not found", label)
	}
	apply(w)
	r.mu.Unlock()
	return r.publish(Op{Op: op, Label: label})
}

func (r *Registry) publish(op Op) error {
	if r.mirror == nil {
		return nil
	}
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	if err := r.mirror.Emit(MirrorTarget, events.Window, string(payload)); err != nil {
		log.Printf("window: mirror %s %q failed: %v", op.Op, op.Label, err)
		return err
	}
	return nil
}
