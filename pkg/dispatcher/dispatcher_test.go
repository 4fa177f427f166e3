package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/mailbox"
	"github.com/morezero/portal-node/pkg/validation"
)

const dispatchTestPrefix = "dispatcher:dispatcher_test"

type fixture struct {
	portal  *mailbox.Mailbox[jsonrpc.PortalRequest]
	history *mailbox.Mailbox[jsonrpc.HistoryRequest]
	state   *mailbox.Mailbox[jsonrpc.StateRequest]
	disp    *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		portal:  mailbox.New[jsonrpc.PortalRequest](),
		history: mailbox.New[jsonrpc.HistoryRequest](),
		state:   mailbox.New[jsonrpc.StateRequest](),
	}
	f.disp = NewDispatcher(f.portal, f.history, f.state)
	return f
}

// servePortal answers the next portal message with handle.
func servePortal(t *testing.T, mb *mailbox.Mailbox[jsonrpc.PortalRequest], handle func(jsonrpc.PortalRequest)) {
	t.Helper()
	go func() {
		msg, err := mb.Recv(context.Background())
		if err != nil {
			return
		}
		handle(msg)
	}()
}

func dispatch(t *testing.T, d *Dispatcher, req *jsonrpc.Request) *jsonrpc.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.Dispatch(ctx, req)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	f := newFixture()

	resp := dispatch(t, f.disp, &jsonrpc.Request{JSONRPC: "2.0", Method: "nonexistent", ID: 42})

	if resp.Error == nil {
		t.Fatalf("%s - expected error, got nil", dispatchTestPrefix)
	}
	if resp.Error.Code != jsonrpc.CodeMethodNotFound {
		t.Errorf("%s - expected %d, got %d", dispatchTestPrefix, jsonrpc.CodeMethodNotFound, resp.Error.Code)
	}
	if resp.ID == nil || *resp.ID != 42 {
		t.Errorf("%s - expected ID=42, got %v", dispatchTestPrefix, resp.ID)
	}
	if f.portal.Len() != 0 {
		t.Errorf("%s - unknown method must not be forwarded", dispatchTestPrefix)
	}
}

func TestDispatch_PortalSuccess(t *testing.T) {
	f := newFixture()
	servePortal(t, f.portal, func(msg jsonrpc.PortalRequest) {
		if msg.Endpoint != jsonrpc.ClientVersion {
			_ = msg.Resp.Fail(errors.New("wrong endpoint"))
			return
		}
		_ = msg.Resp.Ok("portal-node/v1.2.3")
	})

	resp := dispatch(t, f.disp, request("web3_clientVersion", jsonrpc.NoParams()))

	if resp.Error != nil {
		t.Fatalf("%s - unexpected error: %v", dispatchTestPrefix, resp.Error)
	}
	if string(resp.Result) != `"portal-node/v1.2.3"` {
		t.Errorf("%s - Result = %s", dispatchTestPrefix, resp.Result)
	}
}

func TestDispatch_PortalParamsTravel(t *testing.T) {
	f := newFixture()
	got := make(chan jsonrpc.Params, 1)
	servePortal(t, f.portal, func(msg jsonrpc.PortalRequest) {
		got <- msg.Params
		_ = msg.Resp.Ok(true)
	})

	params := jsonrpc.Positional(json.RawMessage(`{"total":1}`))
	dispatch(t, f.disp, request("portal_addNodes", params))

	p := <-got
	if string(p.Value()) != `[{"total":1}]` {
		t.Errorf("%s - params = %s", dispatchTestPrefix, p.Value())
	}
}

func TestDispatch_PortalErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"structured error kept", jsonrpc.NewError(-32010, "custom"), -32010},
		{"validation error", validation.New("missing total param"), jsonrpc.CodeInvalidParams},
		{"plain error", errors.New("boom"), jsonrpc.CodeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			servePortal(t, f.portal, func(msg jsonrpc.PortalRequest) {
				_ = msg.Resp.Fail(tt.err)
			})

			resp := dispatch(t, f.disp, request("discv5_nodeInfo", jsonrpc.NoParams()))
			if resp.Error == nil {
				t.Fatalf("%s - expected error", dispatchTestPrefix)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("%s - Code = %d, want %d", dispatchTestPrefix, resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestDispatch_ClosedResponderIsUnavailable(t *testing.T) {
	f := newFixture()
	servePortal(t, f.portal, func(msg jsonrpc.PortalRequest) {
		_ = msg.Resp.Close()
	})

	resp := dispatch(t, f.disp, request("discv5_nodeInfo", jsonrpc.NoParams()))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeDestinationUnavailable {
		t.Fatalf("%s - expected %d, got %+v", dispatchTestPrefix, jsonrpc.CodeDestinationUnavailable, resp.Error)
	}
}

func TestDispatch_ClosedMailboxIsUnavailable(t *testing.T) {
	f := newFixture()
	f.history.Close()

	resp := dispatch(t, f.disp, request("portalHistory_radius", jsonrpc.NoParams()))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeDestinationUnavailable {
		t.Fatalf("%s - expected %d, got %+v", dispatchTestPrefix, jsonrpc.CodeDestinationUnavailable, resp.Error)
	}
}

func TestDispatch_NilMailboxIsUnavailable(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)

	resp := dispatch(t, d, request("portalState_radius", jsonrpc.NoParams()))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeDestinationUnavailable {
		t.Fatalf("%s - expected %d, got %+v", dispatchTestPrefix, jsonrpc.CodeDestinationUnavailable, resp.Error)
	}
}

func TestDispatch_SubnetworkStringError(t *testing.T) {
	f := newFixture()
	go func() {
		msg, err := f.state.Recv(context.Background())
		if err != nil {
			return
		}
		_ = msg.Resp.Fail("radius unavailable")
	}()

	resp := dispatch(t, f.disp, request("portalState_radius", jsonrpc.NoParams()))
	if resp.Error == nil {
		t.Fatalf("%s - expected error", dispatchTestPrefix)
	}
	if resp.Error.Code != jsonrpc.CodeServer || resp.Error.Message != "radius unavailable" {
		t.Errorf("%s - got %+v", dispatchTestPrefix, resp.Error)
	}
}

func TestDispatch_TimeoutReleasesReceiver(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := f.disp.Dispatch(ctx, request("discv5_routingTableInfo", jsonrpc.NoParams()))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInternal {
		t.Fatalf("%s - expected %d, got %+v", dispatchTestPrefix, jsonrpc.CodeInternal, resp.Error)
	}

	msg, err := f.portal.Recv(context.Background())
	if err != nil {
		t.Fatalf("%s - expected queued message: %v", dispatchTestPrefix, err)
	}
	if !msg.Resp.Abandoned() {
		t.Errorf("%s - receiver should be released after timeout", dispatchTestPrefix)
	}
	if err := msg.Resp.Ok("late"); !errors.Is(err, jsonrpc.ErrReceiverGone) {
		t.Errorf("%s - late reply: got %v, want ErrReceiverGone", dispatchTestPrefix, err)
	}
}
