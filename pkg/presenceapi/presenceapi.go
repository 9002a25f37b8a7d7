// Package presenceapi is the stable surface a host shell embeds this
// agent through: subscribe to now-playing changes, read the current
// snapshot, or push an activity update directly. It is a thin
// pass-through to internal/orchestrator — the shell is out of this
// repo's scope, but its contract isn't.
package presenceapi

import (
	"context"
	"time"

	"github.com/nowcast-run/agent/internal/media"
)

// NowPlaying carries a media.NowPlaying's title, artist and artwork
// hash, with Start/End as Unix milliseconds; the artwork MIME type and
// bytes are not included. It's a distinct type so this package's
// contract doesn't change shape if internal/media grows fields a shell
// consumer shouldn't see.
type NowPlaying struct {
	Title       string
	Artist      string
	Start       int64 // Unix millis
	End         int64 // Unix millis
	ArtworkHash string
}

func fromMedia(np *media.NowPlaying) *NowPlaying {
	if np == nil {
		return nil
	}
	return &NowPlaying{
		Title:       np.Title,
		Artist:      np.Artist,
		Start:       np.Start.UnixMilli(),
		End:         np.End.UnixMilli(),
		ArtworkHash: np.ArtworkHash,
	}
}

// toMedia carries only track metadata, not artwork: a direct
// SetActivity call is for pushing a manual or overridden activity, not
// for re-running the artwork pipeline, matching the original
// implementation's set_activity command (title/artist/timestamps
// only — artwork publication is the media-subscription path's job).
func (np *NowPlaying) toMedia() *media.NowPlaying {
	if np == nil {
		return nil
	}
	return &media.NowPlaying{
		Title:  np.Title,
		Artist: np.Artist,
		Start:  time.UnixMilli(np.Start),
		End:    time.UnixMilli(np.End),
	}
}

// Core is the orchestrator surface this API re-exports. *orchestrator.Orchestrator
// satisfies it; tests substitute a fake.
type Core interface {
	SubscribeMedia(ctx context.Context) (<-chan *media.NowPlaying, error)
	GetMedia(ctx context.Context) (*media.NowPlaying, error)
	SetActivity(ctx context.Context, np *media.NowPlaying) error
}

// API is the shell-facing handle onto a running agent.
type API struct {
	core Core
}

// New wraps an already-running orchestrator.
func New(core Core) *API {
	return &API{core: core}
}

// SubscribeMedia streams now-playing changes until ctx is canceled.
// A nil value on the channel means playback stopped.
func (a *API) SubscribeMedia(ctx context.Context) (<-chan *NowPlaying, error) {
	src, err := a.core.SubscribeMedia(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *NowPlaying, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case np, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- fromMedia(np):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// GetMedia returns the current now-playing snapshot, or nil if nothing
// is playing.
func (a *API) GetMedia(ctx context.Context) (*NowPlaying, error) {
	np, err := a.core.GetMedia(ctx)
	if err != nil {
		return nil, err
	}
	return fromMedia(np), nil
}

// SetActivity pushes np as the current activity across every connected
// rich-presence slot, or clears it if np is nil.
func (a *API) SetActivity(ctx context.Context, np *NowPlaying) error {
	return a.core.SetActivity(ctx, np.toMedia())
}
