package heartbeat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/synapse-agents/synapse/internal/acp"
	"github.com/synapse-agents/synapse/internal/bus"
)

func TestService_BroadcastsOnSchedule(t *testing.T) {
	b := bus.New(bus.Options{})
	inbox := make(chan acp.Message, 8)
	if err := b.Register("listener", inbox); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe("listener", "heartbeat"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(b, "heartbeat", "@every 1s")
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	select {
	case msg := <-inbox:
		if msg.Sender() != SenderID {
			t.Errorf("sender = %q, want %q", msg.Sender(), SenderID)
		}
		if msg.Topic() != "heartbeat" {
			t.Errorf("topic = %q, want heartbeat", msg.Topic())
		}
		status := msg.Payload().(acp.StatusUpdate)
		if !strings.HasPrefix(status.Status, "alive") {
			t.Errorf("status = %q, want alive prefix", status.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat within 5s")
	}
	if svc.Beats() < 1 {
		t.Errorf("expected at least one beat counted, got %d", svc.Beats())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestService_InvalidSpec(t *testing.T) {
	svc := NewService(bus.New(bus.Options{}), "heartbeat", "not a cron spec")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Start(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected schedule error, got %v", err)
	}
}
