package manager

import "sync"

// MemoryPublisher keeps published events in memory. Tests use it to assert
// lifecycle ordering.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names for modelID in publish order. An empty
// modelID matches every event.
func (p *MemoryPublisher) Names(modelID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if modelID == "" || e.ModelID == modelID {
			out = append(out, e.Name)
		}
	}
	return out
}
