package live

import (
	"context"
	"testing"
	"time"
)

func fullConnection(t *testing.T) *connection {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	c := &connection{
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan Outbound, 2),
		urgent:  make(chan Outbound, 1),
		stop:    make(chan struct{}),
		written: make(chan struct{}),
	}
	c.out <- Outbound{Type: TypeState}
	c.out <- Outbound{Type: TypeState}
	return c
}

func TestConnection_SendUrgentDoesNotBlock(t *testing.T) {
	c := fullConnection(t)

	done := make(chan struct{})
	go func() {
		c.sendUrgent(Outbound{Type: TypeEdgeCase})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendUrgent blocked on a full buffer with no writer")
	}

	select {
	case msg := <-c.urgent:
		if msg.Type != TypeEdgeCase {
			t.Errorf("urgent message type = %q, want %q", msg.Type, TypeEdgeCase)
		}
	default:
		t.Fatal("edge case was not queued in the overflow slot")
	}
}

func TestConnection_SendUrgentUsesBufferWhenFree(t *testing.T) {
	c := fullConnection(t)
	<-c.out

	c.sendUrgent(Outbound{Type: TypeEdgeCase})
	if len(c.urgent) != 0 {
		t.Error("overflow slot used while the buffer had room")
	}
	<-c.out
	if msg := <-c.out; msg.Type != TypeEdgeCase {
		t.Errorf("buffered message type = %q, want %q", msg.Type, TypeEdgeCase)
	}
}

func TestConnection_OfferDropsWhenFull(t *testing.T) {
	c := fullConnection(t)

	done := make(chan struct{})
	go func() {
		c.offer(Outbound{Type: TypeState})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("offer blocked on a full buffer")
	}
	if len(c.out) != cap(c.out) {
		t.Errorf("len(out) = %d, want %d", len(c.out), cap(c.out))
	}
}
