package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/portal-node/pkg/commsutil"
	"github.com/morezero/portal-node/pkg/middleware"
)

const natsLogPrefix = "transport:nats"

// SubscribeNATS serves JSON-RPC over NATS request/reply on subject. With a
// non-empty queue the subscription joins that queue group. Each message is
// handled on its own goroutine under ctx bounded by timeout.
func SubscribeNATS(ctx context.Context, nc *comms.Conn, subject, queue string, h middleware.HandlerFunc, timeout time.Duration) (*comms.Subscription, error) {
	handle := func(msg *comms.Msg) {
		go func() {
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp := HandleRaw(reqCtx, msg.Data, h)

			data, err := commsutil.EncodePayload(resp)
			if err != nil {
				slog.Error(fmt.Sprintf("%s - failed to encode response: %v", natsLogPrefix, err))
				return
			}
			if msg.Reply == "" {
				slog.Debug(fmt.Sprintf("%s - request on %s has no reply subject", natsLogPrefix, msg.Subject))
				return
			}
			if err := msg.Respond(data); err != nil {
				slog.Error(fmt.Sprintf("%s - failed to respond: %v", natsLogPrefix, err))
			}
		}()
	}

	var (
		sub *comms.Subscription
		err error
	)
	if queue != "" {
		sub, err = nc.QueueSubscribe(subject, queue, handle)
	} else {
		sub, err = nc.Subscribe(subject, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", natsLogPrefix, subject, err)
	}

	slog.Info(fmt.Sprintf("%s - Subscribed to %s", natsLogPrefix, subject))
	return sub, nil
}
