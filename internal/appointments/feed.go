package appointments

import (
	"context"
	"sync"
)

// ChangeKind describes what happened to a document.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeMessage ChangeKind = "message"
	ChangeDeleted ChangeKind = "deleted"
	// ChangeResync tells a subscriber it may have missed changes and must reload.
	ChangeResync ChangeKind = "resync"
)

// Change is the notification published after every successful write.
type Change struct {
	ID   string     `json:"id"`
	Kind ChangeKind `json:"kind"`
	At   int64      `json:"at"`
}

// ChangeFeed fans write notifications out to live subscriptions.
type ChangeFeed interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe returns once the subscription is active. The close func
	// releases it and closes the channel.
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}

const memoryFeedBuffer = 64

// MemoryFeed is an in-process ChangeFeed.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
}

var _ ChangeFeed = (*MemoryFeed)(nil)

// NewMemoryFeed creates a feed with no subscribers.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Change)}
}

// Publish delivers change to every subscriber without blocking. A subscriber
// whose buffer is full gets its oldest pending change replaced by a resync.
func (f *MemoryFeed) Publish(ctx context.Context, change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- change:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- Change{Kind: ChangeResync, At: change.At}:
		default:
		}
	}
	return nil
}

// Subscribe registers a new buffered subscriber.
func (f *MemoryFeed) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan Change, memoryFeedBuffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, closeFn, nil
}

// Subscribers returns the number of active subscriptions.
func (f *MemoryFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
