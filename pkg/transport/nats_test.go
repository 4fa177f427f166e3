package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/portal-node/pkg/jsonrpc"
)

const natsTestPrefix = "transport:nats_test"

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", natsTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", natsTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", natsTestPrefix, err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func TestSubscribeNATS_RequestReply(t *testing.T) {
	nc, cleanup := startTestServer(t, 14240)
	defer cleanup()

	sub, err := SubscribeNATS(context.Background(), nc, "portal.jsonrpc", "", echoMethod, 2*time.Second)
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", natsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	msg, err := nc.Request("portal.jsonrpc", []byte(`{"jsonrpc":"2.0","method":"discv5_nodeInfo","id":77}`), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request failed: %v", natsTestPrefix, err)
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("%s - failed to decode response: %v", natsTestPrefix, err)
	}
	if resp.Error != nil {
		t.Fatalf("%s - unexpected error: %+v", natsTestPrefix, resp.Error)
	}
	if resp.ID == nil || *resp.ID != 77 {
		t.Errorf("%s - ID = %v, want 77", natsTestPrefix, resp.ID)
	}
	if string(resp.Result) != `"discv5_nodeInfo"` {
		t.Errorf("%s - Result = %s", natsTestPrefix, resp.Result)
	}
}

func TestSubscribeNATS_InvalidDocument(t *testing.T) {
	nc, cleanup := startTestServer(t, 14241)
	defer cleanup()

	sub, err := SubscribeNATS(context.Background(), nc, "portal.jsonrpc", "portal-node", echoMethod, 2*time.Second)
	if err != nil {
		t.Fatalf("%s - subscribe failed: %v", natsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	msg, err := nc.Request("portal.jsonrpc", []byte(`{garbage`), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request failed: %v", natsTestPrefix, err)
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("%s - failed to decode response: %v", natsTestPrefix, err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeParseError {
		t.Errorf("%s - expected parse error, got %+v", natsTestPrefix, resp.Error)
	}
	if resp.ID != nil {
		t.Errorf("%s - expected null id, got %d", natsTestPrefix, *resp.ID)
	}
}

func TestSubscribeNATS_ClosedConnection(t *testing.T) {
	nc, cleanup := startTestServer(t, 14242)
	defer cleanup()
	nc.Close()

	if _, err := SubscribeNATS(context.Background(), nc, "portal.jsonrpc", "", echoMethod, time.Second); err == nil {
		t.Fatalf("%s - expected error on closed connection", natsTestPrefix)
	}
}
