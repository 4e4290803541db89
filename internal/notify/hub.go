package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// Options tunes hub delivery behavior
type Options struct {
	// ChannelBuffer is the per-subscription event buffer
	ChannelBuffer int
	// EnqueueTimeout bounds how long a slow consumer can stall a
	// publish before its subscription is dropped
	EnqueueTimeout time.Duration
	// Keepalive is the ping interval on idle streams
	Keepalive time.Duration
}

// DefaultOptions returns the production delivery settings
func DefaultOptions() Options {
	return Options{
		ChannelBuffer:  16,
		EnqueueTimeout: 1 * time.Second,
		Keepalive:      30 * time.Second,
	}
}

// Subscription is one live event stream for a user. A user may hold
// several concurrently (one per connected client).
type Subscription struct {
	UserID string

	ch       chan contracts.Envelope
	done     chan struct{}
	once     sync.Once
	lastSend atomic.Int64 // unix nanos of the last delivered event
}

// Events is the stream to consume. It is never closed; readers should
// select on Done alongside it.
func (s *Subscription) Events() <-chan contracts.Envelope {
	return s.ch
}

// Done is closed when the subscription is dropped or closed
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to per-user subscriptions. Delivery is
// at-most-once: a consumer that cannot drain its buffer within the
// enqueue timeout is dropped rather than allowed to stall publishers.
// Events published to one subscription arrive in publish order.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	opts   Options
	logger *logger.Logger
}

// New creates a hub
func New(opts Options, log *logger.Logger) *Hub {
	if opts.ChannelBuffer <= 0 {
		opts.ChannelBuffer = DefaultOptions().ChannelBuffer
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = DefaultOptions().EnqueueTimeout
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultOptions().Keepalive
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		opts:   opts,
		logger: log,
	}
}

// Subscribe opens a stream for a user. The first event on it is a
// connected acknowledgment; after that the stream carries published
// events plus keepalive pings while idle.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		UserID: userID,
		ch:     make(chan contracts.Envelope, h.opts.ChannelBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	h.send(sub, contracts.Envelope{
		Event:     contracts.EventConnected,
		Data:      map[string]string{"user_id": userID},
		Timestamp: time.Now().UTC(),
	})
	go h.keepalive(sub)

	h.logger.WithField("user_id", userID).Debug("Stream subscribed")
	return sub
}

// Unsubscribe closes a stream and detaches it from the hub
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.detach(sub)
	sub.close()
}

// Publish delivers an event to every subscription of the listed
// users. It returns once every target has either received the event
// or been dropped; subscriptions of distinct users are served
// concurrently so one slow user cannot delay another.
func (h *Hub) Publish(event contracts.EventType, data interface{}, userIDs ...string) {
	env := contracts.Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	targets := make(map[string][]*Subscription, len(userIDs))
	for _, userID := range userIDs {
		for sub := range h.subs[userID] {
			targets[userID] = append(targets[userID], sub)
		}
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, subs := range targets {
		wg.Add(1)
		go func(subs []*Subscription) {
			defer wg.Done()
			for _, sub := range subs {
				h.send(sub, env)
			}
		}(subs)
	}
	wg.Wait()
}

// Broadcast delivers an event to every connected user
func (h *Hub) Broadcast(event contracts.EventType, data interface{}) {
	h.mu.RLock()
	userIDs := make([]string, 0, len(h.subs))
	for userID := range h.subs {
		userIDs = append(userIDs, userID)
	}
	h.mu.RUnlock()
	h.Publish(event, data, userIDs...)
}

// Connections reports the number of live subscriptions for a user
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// send enqueues with a bounded wait. Consumers that stay full past the
// timeout are dropped so the rest of the fan-out proceeds.
func (h *Hub) send(sub *Subscription, env contracts.Envelope) {
	timer := time.NewTimer(h.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case sub.ch <- env:
		sub.lastSend.Store(time.Now().UnixNano())
	case <-sub.done:
	case <-timer.C:
		h.logger.WithFields(map[string]interface{}{
			"user_id": sub.UserID,
			"event":   string(env.Event),
		}).Warn("Dropping stalled stream subscription")
		h.detach(sub)
		sub.close()
	}
}

// keepalive pings a stream that has been idle for the keepalive
// interval; delivered events push the next ping back.
func (h *Hub) keepalive(sub *Subscription) {
	timer := time.NewTimer(h.opts.Keepalive)
	defer timer.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-timer.C:
			idle := time.Since(time.Unix(0, sub.lastSend.Load()))
			if idle < h.opts.Keepalive {
				timer.Reset(h.opts.Keepalive - idle)
				continue
			}
			h.send(sub, contracts.Envelope{
				Event:     contracts.EventPing,
				Timestamp: time.Now().UTC(),
			})
			timer.Reset(h.opts.Keepalive)
		}
	}
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.UserID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
}
