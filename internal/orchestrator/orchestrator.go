// Package orchestrator wires a platform media source through to the
// artwork register and the presence pool, and exposes the small
// core-facing API a host shell drives (subscribe to changes, read the
// current snapshot, push an activity update directly).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nowcast-run/agent/internal/artwork"
	"github.com/nowcast-run/agent/internal/logging"
	"github.com/nowcast-run/agent/internal/media"
	"github.com/nowcast-run/agent/internal/presence"
)

var log = logging.L("orchestrator")

// broadcaster is the slice of *presence.Pool this package drives.
// Accepting the interface (rather than *presence.Pool directly) lets
// tests exercise the dedup/publish logic with a fake that doesn't open
// any real sockets.
type broadcaster interface {
	Run(ctx context.Context)
	SetActivity(ctx context.Context, pid int, frame *presence.ActivityFrame)
	ClearActivity(ctx context.Context, pid int)
	Statuses() []presence.SlotStatus
}

// Orchestrator owns the one piece of cross-cutting logic this agent
// has: deciding whether a new media observation is worth re-announcing
// (macOS's media source runs its helper in --no-diff mode and re-emits
// the full observation on every helper event, while a genuinely new
// track always changes at least its artwork hash or its start
// timestamp).
type Orchestrator struct {
	source media.Source
	store  *artwork.Store
	server *artwork.Server
	tunnel artwork.Tunnel
	pool   broadcaster
	pid    int

	mu   sync.Mutex
	last *media.NowPlaying
	subs []chan *media.NowPlaying
}

// New assembles an Orchestrator from its already-constructed
// collaborators. Platform wiring (which media.Source, which tunnel)
// lives at the cmd layer, not here.
func New(source media.Source, store *artwork.Store, server *artwork.Server, tunnel artwork.Tunnel, pool *presence.Pool) *Orchestrator {
	return &Orchestrator{
		source: source,
		store:  store,
		server: server,
		tunnel: tunnel,
		pool:   pool,
		pid:    os.Getpid(),
	}
}

// Run starts the artwork HTTP server, the tunnel, the presence pool,
// and the media pump concurrently, and blocks until ctx is canceled or
// one of them returns a fatal error. Unlike a presence slot dying,
// losing the artwork server or tunnel is fatal to the whole process —
// there would be nothing for a rich-presence client to fetch artwork
// from — so this fans out with errgroup.WithContext instead of a
// plain goroutine-per-component launch.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := o.server.Serve(gctx); err != nil {
			return &Error{Kind: Terminal, Op: "artwork server", Err: err}
		}
		return nil
	})

	g.Go(func() error {
		if err := o.tunnel.Start(gctx, o.server.Port()); err != nil {
			return &Error{Kind: Terminal, Op: "artwork tunnel", Err: err}
		}
		return nil
	})

	g.Go(func() error {
		o.pool.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return o.pumpMedia(gctx)
	})

	return g.Wait()
}

// pumpMedia subscribes to the media source and forwards each
// deduplicated observation to the presence pool and to any shell
// subscribers.
func (o *Orchestrator) pumpMedia(ctx context.Context) error {
	ch, err := o.source.Subscribe(ctx)
	if err != nil {
		return &Error{Kind: MediaAdaptor, Op: "subscribe", Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case np, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return &Error{Kind: MediaAdaptor, Op: "subscribe", Err: fmt.Errorf("media subscription closed unexpectedly")}
			}
			o.observe(ctx, np)
		}
	}
}

// observe applies the dedup gate to a media-source observation, then
// fans it out to shell subscribers and the presence pool. Direct calls
// to SetActivity bypass this gate entirely: a caller asking for a
// specific activity wants it sent, not filtered against the last
// observed snapshot.
func (o *Orchestrator) observe(ctx context.Context, np *media.NowPlaying) {
	o.mu.Lock()
	changed := !sameTrack(o.last, np)
	o.last = np
	subs := append([]chan *media.NowPlaying(nil), o.subs...)
	o.mu.Unlock()

	if !changed {
		return
	}

	o.notify(subs, np)
	o.publish(ctx, np)
}

func (o *Orchestrator) notify(subs []chan *media.NowPlaying, np *media.NowPlaying) {
	for _, ch := range subs {
		select {
		case ch <- np:
		default:
			log.Warn("media subscriber channel full, dropping observation")
		}
	}
}

// sameTrack reports whether two observations describe the same
// playing track: same title, artist, start instant, and artwork. Any
// of those changing means the track (or its artwork) changed, even if
// the rest coincidentally match (e.g. a looped track restarting gets a
// new Start).
func sameTrack(a, b *media.NowPlaying) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ArtworkHash == b.ArtworkHash &&
		a.Title == b.Title &&
		a.Artist == b.Artist &&
		a.Start.Equal(b.Start)
}

// publish registers new artwork (if any) and pushes the resulting
// activity frame to every open presence slot.
func (o *Orchestrator) publish(ctx context.Context, np *media.NowPlaying) {
	if np == nil {
		o.pool.ClearActivity(ctx, o.pid)
		return
	}

	if len(np.ArtworkBytes) > 0 {
		o.store.Set(np.ArtworkMIME, np.ArtworkBytes)
	}

	publicURL, err := o.tunnel.PublicURL(ctx)
	if err != nil {
		log.Warn("tunnel public url unavailable, publishing activity without artwork", logging.KeyError, err)
		publicURL = ""
	}

	frame := presence.BuildActivity(np, publicURL)
	o.pool.SetActivity(ctx, o.pid, frame)
}

// SubscribeMedia returns a channel that emits a value each time the
// deduplicated now-playing snapshot changes (nil meaning playback
// stopped). The channel closes when ctx is canceled. Callers that want
// every raw media-source observation, dedup included or not, should
// subscribe to the media.Source directly instead.
func (o *Orchestrator) SubscribeMedia(ctx context.Context) (<-chan *media.NowPlaying, error) {
	ch := make(chan *media.NowPlaying, 8)

	o.mu.Lock()
	o.subs = append(o.subs, ch)
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, c := range o.subs {
			if c == ch {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// GetMedia returns the platform media source's current snapshot,
// bypassing the dedup gate (a one-shot read always reflects the
// adaptor's live state).
func (o *Orchestrator) GetMedia(ctx context.Context) (*media.NowPlaying, error) {
	np, err := o.source.Get(ctx)
	if err != nil {
		return nil, &Error{Kind: MediaAdaptor, Op: "get", Err: err}
	}
	return np, nil
}

// Statuses returns every presence slot's current connection status.
func (o *Orchestrator) Statuses() []presence.SlotStatus {
	return o.pool.Statuses()
}

// TunnelURL returns the artwork tunnel's public URL, blocking until
// it's announced or ctx is canceled.
func (o *Orchestrator) TunnelURL(ctx context.Context) (string, error) {
	return o.tunnel.PublicURL(ctx)
}

// SetActivity pushes np (or clears, if nil) to every live presence
// slot immediately, and records it as the last-known snapshot so a
// subsequent identical media-source observation doesn't re-announce
// it.
func (o *Orchestrator) SetActivity(ctx context.Context, np *media.NowPlaying) error {
	o.mu.Lock()
	o.last = np
	o.mu.Unlock()

	o.publish(ctx, np)
	return nil
}
