package presence

import (
	"context"
	"testing"
	"time"

	"github.com/nowcast-run/agent/internal/workerpool"
)

func newTestPool(n int) *Pool {
	conns := make([]*Conn, n)
	for i := range conns {
		conns[i] = NewConn(i, "cid", "secret", "http://unused.invalid", NewMemTokenStore())
	}
	return &Pool{conns: conns, fanout: workerpool.New(n, n*4)}
}

func TestPoolBroadcastSkipsDeadAndDeliversToOpen(t *testing.T) {
	pool := newTestPool(3)
	pool.conns[0].setStatus(Open)
	pool.conns[1].setStatus(Dead)
	pool.conns[2].setStatus(Open)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pool.SetActivity(ctx, 999, &ActivityFrame{Details: "x"})

	for _, idx := range []int{0, 2} {
		select {
		case cmd := <-pool.conns[idx].outbound:
			if cmd.cmd != "SET_ACTIVITY" {
				t.Fatalf("slot %d: expected SET_ACTIVITY, got %s", idx, cmd.cmd)
			}
			payload, ok := cmd.args.(setActivityPayload)
			if !ok {
				t.Fatalf("slot %d: unexpected args type %T", idx, cmd.args)
			}
			if payload.PID != 999 || payload.Activity == nil || payload.Activity.Details != "x" {
				t.Fatalf("slot %d: unexpected payload %+v", idx, payload)
			}
		default:
			t.Fatalf("slot %d: expected a queued command, queue was empty", idx)
		}
	}

	select {
	case cmd := <-pool.conns[1].outbound:
		t.Fatalf("dead slot should never receive a broadcast, got %+v", cmd)
	default:
	}
}

func TestPoolClearActivityOmitsActivityField(t *testing.T) {
	pool := newTestPool(1)
	pool.conns[0].setStatus(Open)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pool.ClearActivity(ctx, 42)

	select {
	case cmd := <-pool.conns[0].outbound:
		payload := cmd.args.(setActivityPayload)
		if payload.Activity != nil {
			t.Fatalf("expected nil Activity on clear, got %+v", payload.Activity)
		}
		if payload.PID != 42 {
			t.Fatalf("expected pid 42, got %d", payload.PID)
		}
	default:
		t.Fatal("expected a queued clear command")
	}
}

func TestPoolBroadcastSkipsSlotStillOpeningAfterCancel(t *testing.T) {
	pool := newTestPool(1) // status defaults to Opening

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	pool.SetActivity(ctx, 1, &ActivityFrame{})

	select {
	case cmd := <-pool.conns[0].outbound:
		t.Fatalf("a slot stuck Opening past ctx deadline should not receive a broadcast, got %+v", cmd)
	default:
	}
}

func TestPoolStatuses(t *testing.T) {
	pool := newTestPool(2)
	pool.conns[0].setStatus(Open)
	pool.conns[1].setStatus(Dead)

	got := pool.Statuses()
	if len(got) != 2 || got[0] != Open || got[1] != Dead {
		t.Fatalf("unexpected statuses: %+v", got)
	}
}
