package contracts

import "time"

// Channel is a notification delivery channel
type Channel string

const (
	ChannelPush Channel = "push" // live event stream
	ChannelChat Channel = "chat" // webhook message
	ChannelMail Channel = "mail" // reserved
)

// ValidChannel reports whether c is a known channel
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelPush, ChannelChat, ChannelMail:
		return true
	}
	return false
}

// Subscription registers a user's interest in a ticker over a set of
// channels. Identity key is (userId, ticker); upsert semantics.
type Subscription struct {
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Channels  []Channel `json:"channels"`
	CreatedAt time.Time `json:"created_at"`
}

// HasChannel reports whether the subscription includes the channel
func (s Subscription) HasChannel(c Channel) bool {
	for _, ch := range s.Channels {
		if ch == c {
			return true
		}
	}
	return false
}
