package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/mailbox"
	"github.com/morezero/portal-node/pkg/validation"
)

const logPrefix = "dispatcher:dispatch"

const msgDestinationUnavailable = "destination unavailable"

// Dispatcher forwards classified requests to the destination mailboxes and
// waits for the single reply.
type Dispatcher struct {
	portal  *mailbox.Mailbox[jsonrpc.PortalRequest]
	history *mailbox.Mailbox[jsonrpc.HistoryRequest]
	state   *mailbox.Mailbox[jsonrpc.StateRequest]
}

// NewDispatcher creates a new Dispatcher. A nil mailbox makes its destination
// unavailable.
func NewDispatcher(
	portal *mailbox.Mailbox[jsonrpc.PortalRequest],
	history *mailbox.Mailbox[jsonrpc.HistoryRequest],
	state *mailbox.Mailbox[jsonrpc.StateRequest],
) *Dispatcher {
	return &Dispatcher{portal: portal, history: history, state: state}
}

// Dispatch classifies req, forwards it and translates the reply into a
// response. The wait is bounded by ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%d", logPrefix, req.Method, req.ID))

	route, err := Classify(req)
	if err != nil {
		return errorResponse(req.ID, toRPCError(err))
	}

	switch route.Destination {
	case DestinationPortal:
		msg, recv := jsonrpc.NewPortalRequest(route.Portal, req.Params)
		forward(d.portal, msg, msg.Resp)
		return await(ctx, req.ID, recv, toRPCError)
	case DestinationHistory:
		msg, recv := jsonrpc.NewHistoryRequest(route.History)
		forward(d.history, msg, msg.Resp)
		return await(ctx, req.ID, recv, fromString)
	case DestinationState:
		msg, recv := jsonrpc.NewStateRequest(route.State)
		forward(d.state, msg, msg.Resp)
		return await(ctx, req.ID, recv, fromString)
	default:
		return errorResponse(req.ID, methodNotFound(req.Method))
	}
}

// forward pushes msg. When the destination cannot take it the responder is
// closed so the caller sees the destination as unavailable.
func forward[T, E any](mb *mailbox.Mailbox[T], msg T, resp *jsonrpc.Responder[E]) {
	if mb == nil {
		_ = resp.Close()
		return
	}
	if err := mb.Push(msg); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to forward request: %v", logPrefix, err))
		_ = resp.Close()
	}
}

func await[E any](ctx context.Context, id uint32, recv *jsonrpc.Receiver[E], convert func(E) *jsonrpc.Error) *jsonrpc.Response {
	defer recv.Close()

	res, err := recv.Recv(ctx)
	switch {
	case errors.Is(err, jsonrpc.ErrResponderClosed):
		return errorResponse(id, jsonrpc.NewError(jsonrpc.CodeDestinationUnavailable, msgDestinationUnavailable))
	case err != nil:
		slog.Warn(fmt.Sprintf("%s - gave up waiting for id=%d: %v", logPrefix, id, err))
		return errorResponse(id, jsonrpc.NewError(jsonrpc.CodeInternal, fmt.Sprintf("request not answered: %v", err)))
	}

	if res.Failed {
		return errorResponse(id, convert(res.Err))
	}
	return jsonrpc.NewResult(id, res.Value)
}

// --- helpers ---

func errorResponse(id uint32, err *jsonrpc.Error) *jsonrpc.Response {
	return jsonrpc.NewErrorResponse(&id, err)
}

// toRPCError keeps structured errors and maps params rule violations to
// CodeInvalidParams. Anything else is an application error.
func toRPCError(err error) *jsonrpc.Error {
	if err == nil {
		return jsonrpc.NewError(jsonrpc.CodeInternal, "empty error")
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return jsonrpc.NewError(jsonrpc.CodeInvalidParams, vErr.Error())
	}
	return jsonrpc.NewError(jsonrpc.CodeServer, err.Error())
}

func fromString(msg string) *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.CodeServer, msg)
}
