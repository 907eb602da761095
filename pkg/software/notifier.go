package software

import "sync"

// Notifier keeps the subscriber list for a Software implementation and fans
// events out to it. The zero value is ready to use.
type Notifier struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]Events
	initialized *Config
}

// Subscribe registers events. If the software has already been initialized,
// OnInitialized is called right away with the latest configuration.
func (n *Notifier) Subscribe(events Events) func() {
	n.mu.Lock()
	if n.subscribers == nil {
		n.subscribers = make(map[uint64]Events)
	}
	n.nextID++
	id := n.nextID
	n.subscribers[id] = events
	var replay *Config
	if n.initialized != nil {
		cfg := *n.initialized
		replay = &cfg
	}
	n.mu.Unlock()

	if replay != nil && events.OnInitialized != nil {
		events.OnInitialized(*replay)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subscribers, id)
			n.mu.Unlock()
		})
	}
}

// NotifyOutputStateChanged calls OnOutputStateChanged on every subscriber.
func (n *Notifier) NotifyOutputStateChanged(id string, state OutputState) {
	for _, ev := range n.snapshot() {
		if ev.OnOutputStateChanged != nil {
			ev.OnOutputStateChanged(id, state)
		}
	}
}

// NotifyInitialized records config and calls OnInitialized on every subscriber.
func (n *Notifier) NotifyInitialized(config Config) {
	n.mu.Lock()
	cfg := config
	n.initialized = &cfg
	n.mu.Unlock()

	for _, ev := range n.snapshot() {
		if ev.OnInitialized != nil {
			ev.OnInitialized(config)
		}
	}
}

// Count returns the number of subscribers.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subscribers)
}

func (n *Notifier) snapshot() []Events {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Events, 0, len(n.subscribers))
	for _, ev := range n.subscribers {
		out = append(out, ev)
	}
	return out
}
