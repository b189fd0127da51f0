package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"brewble/internal/config"
	"brewble/internal/model"
	"brewble/internal/normalize"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// StartKafka consumes advertisements relayed by remote scanners, one wire
// line per message. Relays that key messages by radio address may omit the
// address from the body.
func StartKafka(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Advertisement, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	go consumeKafka(ctx, reader, parser, out, logger)
}

func consumeKafka(ctx context.Context, reader messageReader, parser *Parser, out chan<- model.Advertisement, logger *slog.Logger) {
	defer reader.Close()
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if logger != nil {
				logger.Warn("kafka read error", "err", err)
			}
			if !BackoffSleep(ctx, time.Second) {
				return
			}
			continue
		}
		fields, err := parser.ParseLine(string(m.Value))
		if err != nil || fields == nil {
			if err != nil && logger != nil {
				logger.Warn("advertisement parse error", "source", "kafka", "partition", m.Partition, "offset", m.Offset, "err", err)
			}
			continue
		}
		if fields.Address == "" && len(m.Key) > 0 {
			fields.Address = strings.TrimSpace(string(m.Key))
		}
		adv, err := normalize.Normalize(*fields, "kafka")
		if err != nil {
			if logger != nil {
				logger.Warn("advertisement normalize error", "source", "kafka", "offset", m.Offset, "err", err)
			}
			continue
		}
		SendNonBlocking(ctx, out, adv, logger)
	}
}
