// Package ingest collects advertisements from the local radio and from
// remote feeds and delivers them on a single channel.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"brewble/internal/model"
	"brewble/internal/normalize"
)

// SendNonBlocking delivers adv unless the channel is full, in which case the
// advertisement is dropped.
func SendNonBlocking(ctx context.Context, out chan<- model.Advertisement, adv model.Advertisement, logger *slog.Logger) bool {
	select {
	case out <- adv:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("advertisement channel full, dropping", "address", adv.Address, "source", adv.Source)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitLine parses one wire line from a remote feed and forwards it.
// Malformed lines are logged and dropped.
func emitLine(ctx context.Context, parser *Parser, line, source string, out chan<- model.Advertisement, logger *slog.Logger) bool {
	fields, err := parser.ParseLine(line)
	if err != nil {
		if logger != nil {
			logger.Warn("advertisement parse error", "source", source, "err", err)
		}
		return false
	}
	if fields == nil {
		return false
	}
	adv, err := normalize.Normalize(*fields, source)
	if err != nil {
		if logger != nil {
			logger.Warn("advertisement normalize error", "source", source, "err", err)
		}
		return false
	}
	return SendNonBlocking(ctx, out, adv, logger)
}
