package events

import (
	"sync"

	"roomDesignAi/internal/design"
)

// Event describes a progress update for a design job.
type Event struct {
	JobID    string        `json:"jobId"`
	UserID   string        `json:"userId,omitempty"`
	Status   design.Status `json:"status"`
	Progress float64       `json:"progress"`
	Stage    string        `json:"currentStage"`
	Error    string        `json:"error,omitempty"`
}

// FromJob builds the event published for a job snapshot.
func FromJob(job design.ProcessingJob) Event {
	return Event{
		JobID:    job.JobID,
		UserID:   job.UserID,
		Status:   job.Status,
		Progress: job.Progress,
		Stage:    job.CurrentStage,
		Error:    job.Error,
	}
}

// Broker manages SSE and WebSocket subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe returns a channel that receives events for jobID, or for every
// job when jobID is empty.
func (b *Broker) Subscribe(jobID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = jobID
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel from the broker.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish fan-outs the event to matching subscribers.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	for ch, jobID := range b.subscribers {
		if jobID != "" && jobID != evt.JobID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
