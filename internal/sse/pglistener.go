package sse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelPredictions is the NOTIFY channel the predictions table trigger uses.
const ChannelPredictions = "prediction_stream"

// PGListener subscribes to PostgreSQL NOTIFY channels and fans out
// notifications to the SSE hub.
type PGListener struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger *slog.Logger
}

// NewPGListener creates a new PGListener that bridges PostgreSQL notifications to SSE.
func NewPGListener(pool *pgxpool.Pool, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{pool: pool, hub: hub, logger: logger}
}

// Listen blocks until ctx is cancelled or the connection fails.
// Run it inside RunWithRecovery so it reconnects.
func (pl *PGListener) Listen(ctx context.Context) {
	conn, err := pl.pool.Acquire(ctx)
	if err != nil {
		pl.logger.Error("pg-listen: acquire connection failed", "err", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", ChannelPredictions)); err != nil {
		pl.logger.Error("pg-listen: LISTEN failed", "channel", ChannelPredictions, "err", err)
		return
	}
	pl.logger.Info("pg-listen: subscribed", "channel", ChannelPredictions)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pl.logger.Error("pg-listen: notification error", "err", err)
			return
		}
		if notification.Channel != ChannelPredictions {
			continue
		}
		pl.hub.Publish(TopicPredictions, Event{Type: "prediction", Data: []byte(notification.Payload)})
	}
}
