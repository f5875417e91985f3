package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

type Message struct {
	Text      string             `json:"text"`
	Author    string             `json:"author"`
	Timestamp time.Time          `json:"timestamp"`
	Channel   domain.ChannelName `json:"channel"`
}

type ChatOptions struct {
	HistoryLimit int
	RateLimit    int
	RateInterval time.Duration
}

// Chat keeps the selected text channel and a bounded in-memory history.
type Chat struct {
	self    domain.ParticipantID
	sender  core.Sender
	limiter *RateLimiter
	limit   int

	mu      sync.RWMutex
	current domain.ChannelName
	history map[domain.ChannelName][]Message
}

func NewChat(self domain.ParticipantID, sender core.Sender, opts ChatOptions) *Chat {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 200
	}
	return &Chat{
		self:    self,
		sender:  sender,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateInterval),
		limit:   opts.HistoryLimit,
		current: domain.DefaultTextChannel,
		history: make(map[domain.ChannelName][]Message),
	}
}

func (c *Chat) Current() domain.ChannelName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Select switches the text channel and requests its history.
func (c *Chat) Select(raw string) (domain.ChannelName, error) {
	name, err := domain.NormalizeChannelName(raw)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.current = name
	c.history[name] = nil
	c.mu.Unlock()
	if err := c.sender.Send(&core.GetChannelMessages{Channel: name}); err != nil {
		return name, fmt.Errorf("request history: %w", err)
	}
	return name, nil
}

// Send posts text to the selected channel.
func (c *Chat) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyMessage
	}
	if !c.limiter.Allow(c.self) {
		log.Warn().Str("module", "app.chat").Msg("message rate limited")
		return domain.ErrRateLimited
	}
	ch := c.Current()
	if err := c.sender.Send(&core.SendMessage{Text: text, Channel: ch}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// OnMessage stores a received message, dropping the oldest past the limit.
func (c *Chat) OnMessage(ev *core.MessageReceived) {
	ch := ev.Channel
	if ch == "" {
		ch = domain.DefaultTextChannel
	}
	msg := Message{Text: ev.Text, Author: ev.Author, Timestamp: ev.Timestamp, Channel: ch}

	c.mu.Lock()
	defer c.mu.Unlock()
	h := append(c.history[ch], msg)
	if over := len(h) - c.limit; over > 0 {
		h = append([]Message(nil), h[over:]...)
	}
	c.history[ch] = h
}

// Messages returns a copy of the history of ch, or of the selected channel
// when ch is empty.
func (c *Chat) Messages(ch domain.ChannelName) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ch == "" {
		ch = c.current
	}
	return append([]Message(nil), c.history[ch]...)
}
