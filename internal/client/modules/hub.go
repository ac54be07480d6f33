package modules

import "sync"

// Publisher receives every saved module config.
type Publisher interface {
	Publish(userID string, cfg Config)
}

// Hub is the default Publisher: it fans saves out to subscribers,
// synchronously and in subscription order. Each subscriber gets its own
// copy of the config.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(userID string, cfg Config)
	ids  []int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(string, Config))}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub) Subscribe(fn func(userID string, cfg Config)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.subs[id] = fn
	h.ids = append(h.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.ids {
				if v == id {
					h.ids = append(h.ids[:i], h.ids[i+1:]...)
					break
				}
			}
		})
	}
}

func (h *Hub) Publish(userID string, cfg Config) {
	h.mu.Lock()
	fns := make([]func(string, Config), 0, len(h.ids))
	for _, id := range h.ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(userID, cfg.Clone())
	}
}
