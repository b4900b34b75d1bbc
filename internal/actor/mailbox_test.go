package actor

import (
	"context"
	"testing"
	"time"
)

func TestMailboxSendReceiveOrder(t *testing.T) {
	mb := NewMailbox[int](4)
	var got []int
	done := make(chan struct{})

	go func() {
		mb.Run(context.Background(), func(v int) { got = append(got, v) })
		close(done)
	}()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := mb.Send(ctx, i); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	mb.Close()
	<-done

	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMailboxSendAfterCloseFails(t *testing.T) {
	mb := NewMailbox[int](1)
	mb.Close()

	if err := mb.Send(context.Background(), 1); err != ErrPeerDead {
		t.Fatalf("Send after Close = %v, want ErrPeerDead", err)
	}
}

func TestMailboxSendRespectsContext(t *testing.T) {
	mb := NewMailbox[int](1)
	// Fill the single buffer slot so the next send must block.
	if err := mb.Send(context.Background(), 1); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := mb.Send(ctx, 2); err != context.DeadlineExceeded {
		t.Fatalf("Send on full mailbox = %v, want DeadlineExceeded", err)
	}
}

func TestMailboxCloseIdempotent(t *testing.T) {
	mb := NewMailbox[int](1)
	mb.Close()
	mb.Close()
	if !mb.Closed() {
		t.Fatal("Closed() = false after Close()")
	}
}
