// internal/props/events.go
package props

/*
 * Property events and lazy watching.
 *
 * Each property owns a hub: ordered subscriber lists per event name plus a
 * count of subscribers to the property's change class (changed for
 * attributes; changed, added and removed for sets). The first change-class
 * subscriber engages the property's Watcher, cancelling the last one
 * disengages it, so an unobserved property costs nothing.
 *
 * Dispatch is synchronous in registration order. The subscriber list is
 * snapshotted at trigger time: subscriptions added by a handler see the
 * next trigger, subscriptions cancelled by a handler are skipped for the
 * rest of the current one.
 */

// Event names a property notification.
type Event string

const (
	EventChanged Event = "changed"
	EventAdded   Event = "added"
	EventRemoved Event = "removed"
)

// Handler receives the arguments of a triggered event.
type Handler func(args ...any)

// Watcher observes whatever backs a property and signals it on change.
type Watcher interface {
	Watch()
	Cancel()
}

// nopWatcher is the watcher of properties that are signalled explicitly.
type nopWatcher struct{}

func (nopWatcher) Watch()  {}
func (nopWatcher) Cancel() {}

// WatcherFuncs adapts a pair of functions to Watcher.
type WatcherFuncs struct {
	OnWatch  func()
	OnCancel func()
}

// Watch calls OnWatch if set.
func (w WatcherFuncs) Watch() {
	if w.OnWatch != nil {
		w.OnWatch()
	}
}

// Cancel calls OnCancel if set.
func (w WatcherFuncs) Cancel() {
	if w.OnCancel != nil {
		w.OnCancel()
	}
}

// Subscription is a registered handler. Cancel is idempotent.
type Subscription struct {
	event     Event
	handler   Handler
	hub       *hub
	cancelled bool
}

// Event returns the subscribed event name.
func (s *Subscription) Event() Event { return s.event }

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return !s.cancelled }

// Cancel stops delivery and releases the property's watch when this was
// its last change-class subscriber.
func (s *Subscription) Cancel() {
	s.hub.cancel(s)
}

type hub struct {
	subs       map[Event][]*Subscription
	class      map[Event]bool
	watchers   int
	watching   bool
	watcher    Watcher
	newWatcher func() Watcher
}

func newHub(class []Event, newWatcher func() Watcher) hub {
	set := make(map[Event]bool, len(class))
	for _, e := range class {
		set[e] = true
	}
	return hub{
		subs:       make(map[Event][]*Subscription),
		class:      set,
		newWatcher: newWatcher,
	}
}

func (h *hub) on(event Event, handler Handler) *Subscription {
	s := &Subscription{event: event, handler: handler, hub: h}
	h.subs[event] = append(h.subs[event], s)

	if h.class[event] {
		h.watchers++
		if !h.watching {
			if h.watcher == nil {
				h.watcher = h.newWatcher()
			}
			h.watching = true
			h.watcher.Watch()
		}
	}
	return s
}

func (h *hub) cancel(s *Subscription) {
	if s.cancelled {
		return
	}
	s.cancelled = true

	// Rebuild rather than splice so in-flight trigger snapshots keep
	// their backing array.
	old := h.subs[s.event]
	kept := make([]*Subscription, 0, len(old))
	for _, other := range old {
		if other != s {
			kept = append(kept, other)
		}
	}
	h.subs[s.event] = kept

	if h.class[s.event] {
		h.watchers--
		if h.watchers == 0 && h.watching {
			h.watching = false
			h.watcher.Cancel()
		}
	}
}

func (h *hub) trigger(event Event, args []any) {
	for _, s := range h.subs[event] {
		if s.cancelled {
			continue
		}
		s.handler(args...)
	}
}
