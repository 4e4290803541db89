package subscriptions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/earnsight/internal/contracts"
	"github.com/wonny/earnsight/pkg/logger"
)

type recordingPersister struct {
	saved   []contracts.Subscription
	deleted []string
}

func (p *recordingPersister) SaveSubscription(_ context.Context, sub contracts.Subscription) error {
	p.saved = append(p.saved, sub)
	return nil
}

func (p *recordingPersister) DeleteSubscription(_ context.Context, userID, ticker string) error {
	p.deleted = append(p.deleted, userID+"/"+ticker)
	return nil
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	reg := New(nil, logger.Nop())

	t.Run("normalizes ticker and defaults channel", func(t *testing.T) {
		sub, err := reg.Upsert(ctx, "alice", " aapl.us ", nil)
		require.NoError(t, err)
		assert.Equal(t, "AAPL", sub.Ticker)
		assert.Equal(t, []contracts.Channel{contracts.ChannelPush}, sub.Channels)
	})

	t.Run("replace keeps created time", func(t *testing.T) {
		first, err := reg.Upsert(ctx, "alice", "MSFT", []contracts.Channel{contracts.ChannelPush})
		require.NoError(t, err)
		second, err := reg.Upsert(ctx, "alice", "MSFT", []contracts.Channel{contracts.ChannelChat})
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.Equal(t, []contracts.Channel{contracts.ChannelChat}, second.Channels)
	})

	t.Run("dedupes channels", func(t *testing.T) {
		sub, err := reg.Upsert(ctx, "bob", "AAPL", []contracts.Channel{
			contracts.ChannelPush, contracts.ChannelPush, contracts.ChannelChat,
		})
		require.NoError(t, err)
		assert.Equal(t, []contracts.Channel{contracts.ChannelPush, contracts.ChannelChat}, sub.Channels)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := reg.Upsert(ctx, "", "AAPL", nil)
		assert.Error(t, err)
		_, err = reg.Upsert(ctx, "alice", "not a ticker", nil)
		assert.Error(t, err)
		_, err = reg.Upsert(ctx, "alice", "AAPL", []contracts.Channel{"sms"})
		assert.Error(t, err)
	})
}

func TestRemoveAndList(t *testing.T) {
	ctx := context.Background()
	reg := New(nil, logger.Nop())

	_, err := reg.Upsert(ctx, "alice", "MSFT", nil)
	require.NoError(t, err)
	_, err = reg.Upsert(ctx, "alice", "AAPL", nil)
	require.NoError(t, err)

	list := reg.List("alice")
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Ticker) // sorted

	assert.True(t, reg.Remove(ctx, "alice", "aapl"))
	assert.False(t, reg.Remove(ctx, "alice", "AAPL"))
	assert.Len(t, reg.List("alice"), 1)
}

func TestSubscribersFor(t *testing.T) {
	ctx := context.Background()
	reg := New(nil, logger.Nop())

	_, _ = reg.Upsert(ctx, "carol", "AAPL", []contracts.Channel{contracts.ChannelPush, contracts.ChannelChat})
	_, _ = reg.Upsert(ctx, "alice", "AAPL", []contracts.Channel{contracts.ChannelPush})
	_, _ = reg.Upsert(ctx, "bob", "AAPL", []contracts.Channel{contracts.ChannelChat})
	_, _ = reg.Upsert(ctx, "dave", "MSFT", []contracts.Channel{contracts.ChannelPush})

	assert.Equal(t, []string{"alice", "carol"}, reg.SubscribersFor("AAPL", contracts.ChannelPush))
	assert.Equal(t, []string{"bob", "carol"}, reg.SubscribersFor("AAPL", contracts.ChannelChat))
	assert.Empty(t, reg.SubscribersFor("TSLA", contracts.ChannelPush))
}

func TestWriteThrough(t *testing.T) {
	ctx := context.Background()
	persist := &recordingPersister{}
	reg := New(persist, logger.Nop())

	_, err := reg.Upsert(ctx, "alice", "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, persist.saved, 1)
	assert.Equal(t, "AAPL", persist.saved[0].Ticker)

	reg.Remove(ctx, "alice", "AAPL")
	assert.Equal(t, []string{"alice/AAPL"}, persist.deleted)
}

func TestLoadHydrates(t *testing.T) {
	reg := New(nil, logger.Nop())
	reg.Load([]contracts.Subscription{
		{UserID: "alice", Ticker: "AAPL", Channels: []contracts.Channel{contracts.ChannelPush}},
		{UserID: "bob", Ticker: "AAPL", Channels: []contracts.Channel{contracts.ChannelChat}},
	})

	assert.Equal(t, []string{"alice"}, reg.SubscribersFor("AAPL", contracts.ChannelPush))
	assert.Len(t, reg.List("bob"), 1)
}
