package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/morezero/portal-node/pkg/mailbox"
)

const serveLogPrefix = "network:serve"

// NewPool creates the worker pool the actors run their messages on.
func NewPool(size int) (*ants.Pool, error) {
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		slog.Error(fmt.Sprintf("%s - worker panic recovered: %v", serveLogPrefix, p))
	}))
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create worker pool: %w", serveLogPrefix, err)
	}
	return pool, nil
}

// Serve consumes mb and runs handle for each message on pool. A nil pool
// runs messages inline. It returns nil once mb is closed and drained, or
// ctx.Err() when ctx ends first.
func Serve[T any](ctx context.Context, mb *mailbox.Mailbox[T], pool *ants.Pool, handle func(context.Context, T)) error {
	for {
		msg, err := mb.Recv(ctx)
		if errors.Is(err, mailbox.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if pool == nil {
			handle(ctx, msg)
			continue
		}
		if err := pool.Submit(func() { handle(ctx, msg) }); err != nil {
			slog.Warn(fmt.Sprintf("%s - pool rejected message, handling inline: %v", serveLogPrefix, err))
			handle(ctx, msg)
		}
	}
}
