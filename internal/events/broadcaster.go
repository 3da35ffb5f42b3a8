package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
)

// DefaultInitTaskLimit is how many recent tasks an init message carries when
// no limit is configured.
const DefaultInitTaskLimit = 20

// Channel is one subscriber connection.
type Channel interface {
	// ID identifies the subscriber. A later Subscribe with the same id
	// replaces the earlier channel.
	ID() string

	// Send delivers msg. An error marks the channel dead.
	Send(ctx context.Context, msg Message) error

	// Close releases the underlying connection.
	Close() error
}

// SnapshotSource provides the state carried by init messages.
type SnapshotSource interface {
	Agents(ctx context.Context) []domain.Agent
	RecentTasks(ctx context.Context, limit int) []domain.Task
	Metrics(ctx context.Context) domain.Metrics
}

// Config holds Broadcaster options.
type Config struct {
	// InitTaskLimit bounds the recent tasks sent on subscribe.
	// Zero or negative selects DefaultInitTaskLimit.
	InitTaskLimit int
}

// subscriber is a registered channel. sendMu orders sends to it, and is
// held by Subscribe until the init message is out, so no broadcast can
// reach the channel ahead of init.
type subscriber struct {
	ch     Channel
	sendMu sync.Mutex
	dead   bool
}

// send delivers msg unless an earlier send already failed.
func (s *subscriber) send(ctx context.Context, msg Message) (bool, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.dead {
		return false, nil
	}
	if err := s.ch.Send(ctx, msg); err != nil {
		s.dead = true
		return true, err
	}
	return true, nil
}

// Broadcaster delivers messages to every subscribed channel.
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[string]*subscriber

	source        SnapshotSource
	initTaskLimit int
	logger        *slog.Logger
}

// NewBroadcaster creates a Broadcaster that builds init messages from
// source.
func NewBroadcaster(source SnapshotSource, log *slog.Logger, cfg Config) *Broadcaster {
	if source == nil {
		panic("source cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.InitTaskLimit <= 0 {
		cfg.InitTaskLimit = DefaultInitTaskLimit
	}
	return &Broadcaster{
		channels:      make(map[string]*subscriber),
		source:        source,
		initTaskLimit: cfg.InitTaskLimit,
		logger:        log.With(slog.String("component", "event_broadcaster")),
	}
}

// Subscribe registers ch and sends it an init message. Messages published
// while the init is being built and sent are delivered after it. If the
// init send fails the channel is removed again and the error is returned.
func (b *Broadcaster) Subscribe(ctx context.Context, ch Channel) error {
	sub := &subscriber{ch: ch}
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()

	b.mu.Lock()
	prev, replaced := b.channels[ch.ID()]
	b.channels[ch.ID()] = sub
	count := len(b.channels)
	b.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, b.logger)
	if replaced && prev.ch != ch {
		_ = prev.ch.Close()
	}
	log.Debug("subscriber connected",
		slog.String("subscriber_id", ch.ID()),
		slog.Int("subscriber_count", count))

	init := NewInit(
		b.source.Agents(ctx),
		b.source.RecentTasks(ctx, b.initTaskLimit),
		b.source.Metrics(ctx),
	)
	if err := ch.Send(ctx, init); err != nil {
		sub.dead = true
		b.Drop(ch)
		_ = ch.Close()
		return fmt.Errorf("failed to send init message: %w", err)
	}
	return nil
}

// Unsubscribe removes the channel with id. It does not close the channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.channels, id)
	count := len(b.channels)
	b.mu.Unlock()

	b.logger.Debug("subscriber disconnected",
		slog.String("subscriber_id", id),
		slog.Int("subscriber_count", count))
}

// SubscriberCount returns the number of registered channels.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels)
}

// Publish sends msg to every channel. A channel whose send fails does not
// stop delivery to the others; it is removed and closed after the pass.
func (b *Broadcaster) Publish(ctx context.Context, msg Message) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.channels))
	for _, sub := range b.channels {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	log := logger.FromContextOrDefault(ctx, b.logger)
	var dead []Channel
	for _, sub := range subs {
		sent, err := sub.send(ctx, msg)
		if !sent || err == nil {
			continue
		}
		log.Debug("subscriber send failed",
			slog.String("subscriber_id", sub.ch.ID()),
			slog.String("message_type", msg.Kind()),
			slog.String("error", err.Error()))
		dead = append(dead, sub.ch)
	}

	for _, ch := range dead {
		b.Drop(ch)
		_ = ch.Close()
	}
	if len(dead) > 0 {
		log.Info("pruned dead subscribers", slog.Int("count", len(dead)))
	}
}

// Drop removes ch if it is still the channel registered under its id, so a
// stale connection never evicts the one that replaced it.
func (b *Broadcaster) Drop(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.channels[ch.ID()]; ok && cur.ch == ch {
		delete(b.channels, ch.ID())
	}
}

// HandleInbound processes a raw client message received on ch. A ping is
// answered with a pong; anything else is ignored.
func (b *Broadcaster) HandleInbound(ctx context.Context, ch Channel, raw []byte) error {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.FromContextOrDefault(ctx, b.logger).Debug("ignoring malformed client message",
			slog.String("subscriber_id", ch.ID()),
			slog.String("error", err.Error()))
		return nil
	}

	if msg.Type != TypePing {
		return nil
	}
	return ch.Send(ctx, NewPong())
}
