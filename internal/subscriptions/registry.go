package subscriptions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

// Persister writes subscription changes through to durable storage.
// The in-memory registry stays authoritative for reads.
type Persister interface {
	SaveSubscription(ctx context.Context, sub contracts.Subscription) error
	DeleteSubscription(ctx context.Context, userID, ticker string) error
}

// Registry tracks which users want notifications for which tickers,
// and over which channels.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]map[string]contracts.Subscription // userID -> ticker -> sub
	persist Persister
	logger  *logger.Logger
}

// New creates a registry. persist may be nil for memory-only mode.
func New(persist Persister, log *logger.Logger) *Registry {
	return &Registry{
		byUser:  make(map[string]map[string]contracts.Subscription),
		persist: persist,
		logger:  log,
	}
}

// Upsert creates or replaces a user's subscription to a ticker.
// Channel names are validated; the ticker is normalized first.
func (r *Registry) Upsert(ctx context.Context, userID, ticker string, channels []contracts.Channel) (contracts.Subscription, error) {
	if userID == "" {
		return contracts.Subscription{}, fmt.Errorf("user id required")
	}
	ticker = contracts.NormalizeTicker(ticker)
	if !contracts.ValidTicker(ticker) {
		return contracts.Subscription{}, fmt.Errorf("invalid ticker %q", ticker)
	}
	if len(channels) == 0 {
		channels = []contracts.Channel{contracts.ChannelPush}
	}
	seen := make(map[contracts.Channel]struct{}, len(channels))
	deduped := make([]contracts.Channel, 0, len(channels))
	for _, ch := range channels {
		if !contracts.ValidChannel(ch) {
			return contracts.Subscription{}, fmt.Errorf("invalid channel %q", ch)
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		deduped = append(deduped, ch)
	}

	sub := contracts.Subscription{
		UserID:    userID,
		Ticker:    ticker,
		Channels:  deduped,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]contracts.Subscription)
	}
	if prev, ok := r.byUser[userID][ticker]; ok {
		sub.CreatedAt = prev.CreatedAt
	}
	r.byUser[userID][ticker] = sub
	r.mu.Unlock()

	if r.persist != nil {
		if err := r.persist.SaveSubscription(ctx, sub); err != nil {
			r.logger.WithError(err).Warn("Subscription write-through failed")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"ticker":  ticker,
	}).Info("Subscription upserted")
	return sub, nil
}

// Remove deletes a user's subscription to a ticker
func (r *Registry) Remove(ctx context.Context, userID, ticker string) bool {
	ticker = contracts.NormalizeTicker(ticker)

	r.mu.Lock()
	subs, ok := r.byUser[userID]
	if ok {
		_, ok = subs[ticker]
		delete(subs, ticker)
		if len(subs) == 0 {
			delete(r.byUser, userID)
		}
	}
	r.mu.Unlock()

	if ok && r.persist != nil {
		if err := r.persist.DeleteSubscription(ctx, userID, ticker); err != nil {
			r.logger.WithError(err).Warn("Subscription delete write-through failed")
		}
	}
	return ok
}

// List returns a user's subscriptions ordered by ticker
func (r *Registry) List(userID string) []contracts.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contracts.Subscription, 0, len(r.byUser[userID]))
	for _, sub := range r.byUser[userID] {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// SubscribersFor returns the user IDs subscribed to a ticker over the
// given channel, sorted for deterministic fan-out.
func (r *Registry) SubscribersFor(ticker string, channel contracts.Channel) []string {
	ticker = contracts.NormalizeTicker(ticker)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []string
	for userID, subs := range r.byUser {
		if sub, ok := subs[ticker]; ok && sub.HasChannel(channel) {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

// Load replaces the registry contents, used to hydrate from storage
// at startup.
func (r *Registry) Load(subs []contracts.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byUser = make(map[string]map[string]contracts.Subscription, len(subs))
	for _, sub := range subs {
		if r.byUser[sub.UserID] == nil {
			r.byUser[sub.UserID] = make(map[string]contracts.Subscription)
		}
		r.byUser[sub.UserID][sub.Ticker] = sub
	}
}
