// Package presence supervises the agent's connections to a local
// rich-presence client: one connection per candidate socket/pipe slot,
// each with its own state machine, OAuth token lifecycle, and
// reconnect-with-backoff loop, plus a pool that fans activity updates
// out to every currently open slot.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/nowcast-run/agent/internal/ipc"
	"github.com/nowcast-run/agent/internal/logging"
	"github.com/nowcast-run/agent/internal/nonce"
	"github.com/nowcast-run/agent/internal/pipeaddr"
)

var log = logging.L("presence")

// SlotStatus is a connection slot's lifecycle state.
type SlotStatus int

const (
	Opening SlotStatus = iota
	Open
	Dead
)

func (s SlotStatus) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("SlotStatus(%d)", int(s))
	}
}

const (
	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

type outboundCmd struct {
	cmd  string
	args any
}

// Conn is one slot's supervised connection: it owns the socket, the
// handshake/auth sequence, the dispatch loop, and the reconnect
// backoff. Run it in its own goroutine for the process lifetime.
type Conn struct {
	slot         int
	clientID     string
	clientSecret string
	tokenURL     string
	store        TokenStore

	mu       sync.Mutex
	status   SlotStatus
	statusCh chan struct{}

	outbound  chan outboundCmd
	closed    chan struct{}
	closeOnce sync.Once

	// dial resolves and opens the slot's transport. Defaults to
	// pipeaddr.Open; overridden in tests to point at an in-process
	// listener instead of a real platform socket/pipe.
	dial func(ctx context.Context, slot int) (net.Conn, error)
}

// NewConn creates a supervised connection for the given slot id (0-9).
func NewConn(slot int, clientID, clientSecret, tokenURL string, store TokenStore) *Conn {
	return &Conn{
		slot:         slot,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		store:        store,
		status:       Opening,
		statusCh:     make(chan struct{}),
		outbound:     make(chan outboundCmd, 32),
		closed:       make(chan struct{}),
		dial:         pipeaddr.Open,
	}
}

func (c *Conn) Slot() int { return c.slot }

func (c *Conn) Status() SlotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Conn) setStatus(s SlotStatus) {
	c.mu.Lock()
	prev := c.status
	c.status = s
	ch := c.statusCh
	c.statusCh = make(chan struct{})
	c.mu.Unlock()
	close(ch)
	if prev != s {
		log.Info("slot status changed", "slot", c.slot, "from", prev, "to", s)
	}
}

// AwaitOpenOrDead blocks until the slot leaves Opening, or ctx is
// canceled (in which case the slot's current status, possibly still
// Opening, is returned).
func (c *Conn) AwaitOpenOrDead(ctx context.Context) SlotStatus {
	for {
		c.mu.Lock()
		status := c.status
		ch := c.statusCh
		c.mu.Unlock()
		if status != Opening {
			return status
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return status
		}
	}
}

// Enqueue hands a command to the dispatch loop, blocking (applying
// backpressure) until the queue has room, the connection is closed, or
// ctx is canceled. Returns false if the connection's queue is closed
// (the slot is dying or dead) rather than accepting the command.
func (c *Conn) Enqueue(ctx context.Context, cmd string, args any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.outbound <- outboundCmd{cmd: cmd, args: args}:
		return true
	case <-c.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// Run drives the connection for the process lifetime: open, handshake,
// authenticate, dispatch, and on any transient error, reconnect after
// an exponential backoff (10ms, capped at 60s) over the raw net.Conn
// transport. A "not found" pipe/socket address is terminal: the slot
// goes Dead and Run returns.
func (c *Conn) Run(ctx context.Context) {
	defer c.closeOnce.Do(func() { close(c.closed) })

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.openAndServe(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, pipeaddr.ErrNotFound) {
			c.setStatus(Dead)
			c.drainOutbound()
			log.Warn("slot address not found, retiring slot", "slot", c.slot)
			return
		}

		if c.Status() == Open {
			// This attempt connected successfully: restart the backoff
			// schedule from its initial delay.
			backoff = initialBackoff
		}
		c.setStatus(Opening)
		log.Warn("connection attempt failed", "slot", c.slot, "error", err)

		jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Conn) drainOutbound() {
	for {
		select {
		case <-c.outbound:
		default:
			return
		}
	}
}

func readPacket(nc net.Conn, dec *ipc.Decoder) (*ipc.Packet, error) {
	for {
		pkt, err := dec.Decode()
		if err != nil {
			return nil, err
		}
		if pkt != nil {
			return pkt, nil
		}
		buf := make([]byte, 4096)
		n, err := nc.Read(buf)
		if err != nil {
			return nil, err
		}
		dec.Feed(buf[:n])
	}
}

func writePacket(nc net.Conn, enc *ipc.Encoder, op ipc.Op, v any) error {
	data, err := enc.Encode(op, v)
	if err != nil {
		return err
	}
	_, err = nc.Write(data)
	return err
}

// openAndServe performs one full connection attempt: dial the slot's
// address, handshake, authenticate, and run the dispatch loop until it
// errors or ctx is canceled (nil error, clean return).
func (c *Conn) openAndServe(ctx context.Context) (err error) {
	defer func() {
		if ctx.Err() != nil {
			err = nil
		}
	}()

	nc, err := c.dial(ctx, c.slot)
	if err != nil {
		return err
	}
	defer nc.Close()

	unblock := make(chan struct{})
	defer close(unblock)
	go func() {
		select {
		case <-ctx.Done():
			nc.Close()
		case <-unblock:
		}
	}()

	dec := ipc.NewDecoder()
	enc := ipc.NewEncoder()

	if err := writePacket(nc, enc, ipc.OpHandshake, handshakeBody{V: 1, ClientID: c.clientID}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	if _, err := readPacket(nc, dec); err != nil {
		return fmt.Errorf("await ready frame: %w", err)
	}

	pending := make(map[string]chan *ipc.Packet)

	sendAndAwait := func(cmd string, args any) (*ipc.Packet, error) {
		n := nonce.New()
		ch := make(chan *ipc.Packet, 1)
		pending[n] = ch
		if err := writePacket(nc, enc, ipc.OpFrame, commandBody{Nonce: n, Args: args, Cmd: cmd}); err != nil {
			delete(pending, n)
			return nil, err
		}
		for {
			pkt, err := readPacket(nc, dec)
			if err != nil {
				delete(pending, n)
				return nil, err
			}
			switch pkt.Op {
			case ipc.OpFrame:
				var env struct {
					Nonce string `json:"nonce"`
				}
				if err := json.Unmarshal(pkt.Data, &env); err == nil && env.Nonce == n {
					delete(pending, n)
					return pkt, nil
				}
				// Response to some other in-flight nonce: discard here,
				// the dispatch loop isn't running yet during auth.
			case ipc.OpPing:
				if err := writePacket(nc, enc, ipc.OpPong, json.RawMessage(pkt.Data)); err != nil {
					return nil, err
				}
			case ipc.OpClose:
				return nil, fmt.Errorf("peer closed connection during authentication")
			}
		}
	}

	accessToken, err := c.authenticate(sendAndAwait)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if _, err := sendAndAwait("AUTHENTICATE", authenticateArgs{AccessToken: accessToken}); err != nil {
		return fmt.Errorf("send AUTHENTICATE: %w", err)
	}

	c.setStatus(Open)

	return c.dispatchLoop(nc, dec, enc, pending)
}

// dispatchLoop is the cooperative per-connection loop: it answers
// pings, routes frame responses to pending nonces, and writes outbound
// commands as they're enqueued. It returns on the first I/O, codec, or
// protocol error (the caller treats this as transient and reconnects).
func (c *Conn) dispatchLoop(nc net.Conn, dec *ipc.Decoder, enc *ipc.Encoder, pending map[string]chan *ipc.Packet) error {
	inbound := make(chan *ipc.Packet)
	inErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			pkt, err := readPacket(nc, dec)
			if err != nil {
				select {
				case inErr <- err:
				case <-stop:
				}
				return
			}
			select {
			case inbound <- pkt:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case err := <-inErr:
			return err

		case pkt := <-inbound:
			switch pkt.Op {
			case ipc.OpPing:
				if err := writePacket(nc, enc, ipc.OpPong, json.RawMessage(pkt.Data)); err != nil {
					return err
				}
			case ipc.OpClose:
				return fmt.Errorf("peer sent close")
			case ipc.OpFrame:
				var env struct {
					Nonce string `json:"nonce"`
				}
				if err := json.Unmarshal(pkt.Data, &env); err != nil || env.Nonce == "" {
					continue
				}
				if ch, ok := pending[env.Nonce]; ok {
					delete(pending, env.Nonce)
					select {
					case ch <- pkt:
					default:
					}
				}
				// Unmatched nonce: discarded.
			}

		case cmd := <-c.outbound:
			n := nonce.New()
			body := commandBody{Nonce: n, Args: cmd.args, Cmd: cmd.cmd}
			if err := writePacket(nc, enc, ipc.OpFrame, body); err != nil {
				return err
			}
			pending[n] = make(chan *ipc.Packet, 1)
		}
	}
}
