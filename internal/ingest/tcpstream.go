package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"

	"brewble/internal/config"
	"brewble/internal/model"
)

// StartTCPStream accepts connections from remote scanners that write one
// advertisement per line.
func StartTCPStream(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Advertisement, logger *slog.Logger) net.Listener {
	current := cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return nil
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp stream listen error", "err", err)
		}
		return nil
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", ln.Addr().String())
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			// Each connection gets its own parser so CSV headers stay per stream.
			go handleTCPStreamConn(ctx, conn, NewParser(), out, logger)
		}
	}()
	return ln
}

func handleTCPStreamConn(ctx context.Context, conn net.Conn, parser *Parser, out chan<- model.Advertisement, logger *slog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	for scanner.Scan() {
		emitLine(ctx, parser, scanner.Text(), "tcp_stream", out, logger)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("tcp stream scanner error", "err", err)
	}
}
