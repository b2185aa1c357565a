// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package eventbus implements the optional NATS JetStream bus described
// by config.EventBusConfig: when enabled, it decouples the Binary
// Assembler (producer) from the Release Materializer (consumer) so a
// burst of completed binaries doesn't block the Group Scheduler's loop
// tick on DuckDB writes. When disabled (the default, and the path
// exercised by most tests) a Bus is a no-op and callers should use the
// scheduler's direct, synchronous Materialize call instead.
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/cartographus/internal/assembler"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/logging"
)

// ReleaseMaterializeSubject is the JetStream subject completed Binary
// values are published to and consumed from.
const ReleaseMaterializeSubject = "releases.materialize"

// Bus is the pub/sub boundary between the assembler and the
// materializer. The zero value is not usable; build one with New.
type Bus struct {
	enabled  bool
	embedded *natsserver.Server
	pub      message.Publisher
	sub      message.Subscriber
	subject  string
	log      *logging.EventLogger
}

// New builds a Bus from cfg. When cfg.Enabled is false, New returns a
// disabled Bus whose Publish is a no-op and whose Consume simply blocks
// on ctx, so callers don't need a separate code path for the disabled
// case.
func New(cfg config.EventBusConfig) (*Bus, error) {
	if !cfg.Enabled {
		return &Bus{enabled: false}, nil
	}

	logger := watermill.NewStdLogger(false, false)
	url := cfg.URL

	var embedded *natsserver.Server
	if cfg.EmbeddedServer {
		srv, err := natsserver.NewServer(&natsserver.Options{
			JetStream: true,
			StoreDir:  cfg.StoreDir,
			Host:      "127.0.0.1",
			Port:      -1,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("eventbus: start embedded nats server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("eventbus: embedded nats server did not become ready")
		}
		embedded = srv
		if url == "" {
			url = srv.ClientURL()
		}
	}

	streamName := cfg.StreamName
	if streamName == "" {
		streamName = "CARTOGRAPHUS_RELEASES"
	}
	consumerName := cfg.ConsumerName
	if consumerName == "" {
		consumerName = "materializer"
	}
	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}

	marshaler := binaryMarshaler{}

	pub, err := watermillnats.NewPublisher(watermillnats.PublisherConfig{
		URL:       url,
		Marshaler: marshaler,
		JetStream: watermillnats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			DurablePrefix: streamName,
		},
	}, logger)
	if err != nil {
		shutdownEmbedded(embedded)
		return nil, fmt.Errorf("eventbus: build publisher: %w", err)
	}

	sub, err := watermillnats.NewSubscriber(watermillnats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: consumerName,
		AckWaitTimeout:   ackWait,
		Unmarshaler:      marshaler,
		JetStream: watermillnats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: streamName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		shutdownEmbedded(embedded)
		return nil, fmt.Errorf("eventbus: build subscriber: %w", err)
	}

	return &Bus{
		enabled:  true,
		embedded: embedded,
		pub:      pub,
		sub:      sub,
		subject:  streamName + "." + ReleaseMaterializeSubject,
		log:      logging.NewEventLogger(),
	}, nil
}

func shutdownEmbedded(srv *natsserver.Server) {
	if srv != nil {
		srv.Shutdown()
	}
}

// Enabled reports whether this Bus actually talks to NATS.
func (b *Bus) Enabled() bool { return b.enabled }

// Publish sends a completed Binary for asynchronous materialization. A
// no-op when the bus is disabled.
func (b *Bus) Publish(ctx context.Context, bin *assembler.Binary) error {
	if !b.enabled {
		return nil
	}
	payload, err := gojson.Marshal(bin)
	if err != nil {
		return fmt.Errorf("eventbus: marshal binary: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.pub.Publish(b.subject, msg); err != nil {
		return err
	}
	b.log.LogEventPublished(ctx, msg.UUID, b.subject)
	return nil
}

// Handler processes one decoded Binary consumed off the bus.
type Handler func(ctx context.Context, bin *assembler.Binary) error

// Consume runs handler over every message on the subject until ctx is
// canceled, acking each message handler processes without error and
// nacking (for JetStream redelivery) otherwise. On a disabled Bus,
// Consume simply blocks until ctx is done, so it can still be run as a
// suture.Service.
func (b *Bus) Consume(ctx context.Context, handler Handler) error {
	if !b.enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	messages, err := b.sub.Subscribe(ctx, b.subject)
	if err != nil {
		return fmt.Errorf("eventbus: subscribe: %w", err)
	}
	b.log.LogSubscriptionStarted(b.subject, "materializer")
	defer b.log.LogSubscriptionStopped(b.subject)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			start := time.Now()
			var bin assembler.Binary
			if err := gojson.Unmarshal(msg.Payload, &bin); err != nil {
				b.log.LogEventFailed(msg.Context(), msg.UUID, err)
				msg.Nack()
				continue
			}
			if err := handler(msg.Context(), &bin); err != nil {
				b.log.LogEventFailed(msg.Context(), msg.UUID, err)
				msg.Nack()
				continue
			}
			b.log.LogEventProcessed(msg.Context(), msg.UUID, time.Since(start).Milliseconds())
			msg.Ack()
		}
	}
}

// Close shuts down the publisher, subscriber, and any embedded NATS
// server this Bus started. A no-op on a disabled Bus.
func (b *Bus) Close() error {
	if !b.enabled {
		return nil
	}
	if err := b.pub.Close(); err != nil {
		logging.Error().Err(err).Str("component", "eventbus").Msg("close publisher")
	}
	if err := b.sub.Close(); err != nil {
		logging.Error().Err(err).Str("component", "eventbus").Msg("close subscriber")
	}
	shutdownEmbedded(b.embedded)
	return nil
}
