package pixsync

import (
	"sync"
)

// UIStateListener receives UI-state change events.
type UIStateListener func(UIState)

// UIStateEvents is an explicit typed subscription registry for UI-state
// changes. On the authority it feeds the live-update push towards the
// registered observer; on the mirror it fans live updates out to local
// presentation subscribers. Publishing with no subscribers is a silent
// no-op: changes are not buffered or replayed.
type UIStateEvents struct {
	lk   sync.Mutex
	next int
	subs map[int]UIStateListener
}

// Subscribe registers a listener and returns its cancel function. The
// listener is invoked synchronously on the publisher's goroutine, so it
// must not block.
func (ev *UIStateEvents) Subscribe(fn UIStateListener) (cancel func()) {
	ev.lk.Lock()
	defer ev.lk.Unlock()
	if ev.subs == nil {
		ev.subs = make(map[int]UIStateListener)
	}
	id := ev.next
	ev.next++
	ev.subs[id] = fn
	return func() {
		ev.lk.Lock()
		defer ev.lk.Unlock()
		delete(ev.subs, id)
	}
}

// Publish delivers a state change to every current subscriber.
func (ev *UIStateEvents) Publish(state UIState) {
	ev.lk.Lock()
	listeners := make([]UIStateListener, 0, len(ev.subs))
	for _, fn := range ev.subs {
		listeners = append(listeners, fn)
	}
	ev.lk.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
