package presence

import (
	"context"
	"sync"

	"github.com/nowcast-run/agent/internal/pipeaddr"
	"github.com/nowcast-run/agent/internal/workerpool"
)

// Pool owns a fixed vector of per-slot connections and broadcasts
// activity updates to every slot that's Open, skipping slots that are
// Dead and waiting out ones still Opening.
type Pool struct {
	conns  []*Conn
	fanout *workerpool.Pool
}

// NewPool creates slotCount connections (clamped to 1..pipeaddr.MaxSlots)
// sharing one TokenStore, and a bounded worker pool sized to the slot
// count for broadcast fan-out.
func NewPool(clientID, clientSecret, tokenURL string, slotCount int, store TokenStore) *Pool {
	if slotCount < 1 {
		slotCount = 1
	}
	if slotCount > pipeaddr.MaxSlots {
		slotCount = pipeaddr.MaxSlots
	}

	conns := make([]*Conn, slotCount)
	for i := range conns {
		conns[i] = NewConn(i, clientID, clientSecret, tokenURL, store)
	}

	return &Pool{
		conns:  conns,
		fanout: workerpool.New(slotCount, slotCount*4),
	}
}

// Run starts every slot's supervisor and blocks until ctx is canceled
// and all slots have wound down.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range p.conns {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx)
		}()
	}
	wg.Wait()
}

// Statuses returns a snapshot of every slot's current status, indexed
// by slot id.
func (p *Pool) Statuses() []SlotStatus {
	out := make([]SlotStatus, len(p.conns))
	for i, c := range p.conns {
		out[i] = c.Status()
	}
	return out
}

// SetActivity broadcasts a SET_ACTIVITY command carrying frame to every
// open slot.
func (p *Pool) SetActivity(ctx context.Context, pid int, frame *ActivityFrame) {
	p.broadcast(ctx, setActivityPayload{PID: pid, Activity: frame})
}

// ClearActivity broadcasts a SET_ACTIVITY command with no activity,
// clearing presence on every open slot.
func (p *Pool) ClearActivity(ctx context.Context, pid int) {
	p.broadcast(ctx, setActivityPayload{PID: pid})
}

// broadcast waits on every non-dead slot to resolve out of Opening,
// then enqueues the command on each one that's Open. Completion means
// every non-dead slot accepted the command into its queue, not that
// any slot acknowledged it.
func (p *Pool) broadcast(ctx context.Context, payload setActivityPayload) {
	var wg sync.WaitGroup
	for _, c := range p.conns {
		c := c
		wg.Add(1)
		if !p.fanout.Submit(func() {
			defer wg.Done()
			p.sendToSlot(ctx, c, payload)
		}) {
			wg.Done()
			log.Warn("broadcast fan-out queue full, skipping slot this round", "slot", c.slot)
		}
	}
	wg.Wait()
}

func (p *Pool) sendToSlot(ctx context.Context, c *Conn, payload setActivityPayload) {
	status := c.AwaitOpenOrDead(ctx)
	if status != Open {
		return
	}
	if !c.Enqueue(ctx, "SET_ACTIVITY", payload) {
		log.Warn("slot queue closed mid-broadcast, skipping", "slot", c.slot)
	}
}
