package main

import (
	"context"
	"testing"
	"time"

	"subpilot/internal/logging"
)

func TestWaitConnectedFollowsFirstConnection(t *testing.T) {
	rt := &runtime{gate: newChannelGate(), logger: logging.NewNop()}

	if rt.waitConnected(context.Background(), 20*time.Millisecond) {
		t.Fatal("channel reported up before any connection")
	}
	rt.gate.OnConnection(false, "connection refused")
	if rt.waitConnected(context.Background(), 20*time.Millisecond) {
		t.Fatal("a disconnect must not open the gate")
	}

	go rt.gate.OnConnection(true, "subscribed")
	if !rt.waitConnected(context.Background(), time.Second) {
		t.Fatal("expected the gate to open on connect")
	}
	rt.gate.OnConnection(true, "reconnected")
	rt.gate.OnConnection(false, "dropped")
	if !rt.waitConnected(context.Background(), 20*time.Millisecond) {
		t.Fatal("gate should stay open after the first connection")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	closed := &runtime{gate: newChannelGate(), logger: logging.NewNop()}
	if closed.waitConnected(ctx, time.Second) {
		t.Fatal("cancelled wait reported a connection")
	}
}
