package presenceapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nowcast-run/agent/internal/media"
)

type fakeCore struct {
	ch        chan *media.NowPlaying
	getResult *media.NowPlaying
	getErr    error
	setCalls  []*media.NowPlaying
}

func (f *fakeCore) SubscribeMedia(ctx context.Context) (<-chan *media.NowPlaying, error) {
	return f.ch, nil
}

func (f *fakeCore) GetMedia(ctx context.Context) (*media.NowPlaying, error) {
	return f.getResult, f.getErr
}

func (f *fakeCore) SetActivity(ctx context.Context, np *media.NowPlaying) error {
	f.setCalls = append(f.setCalls, np)
	return nil
}

func TestGetMediaPassesThroughNil(t *testing.T) {
	core := &fakeCore{}
	api := New(core)

	np, err := api.GetMedia(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if np != nil {
		t.Fatalf("expected nil, got %+v", np)
	}
}

func TestGetMediaConvertsFields(t *testing.T) {
	start := time.UnixMilli(1000)
	end := time.UnixMilli(5000)
	core := &fakeCore{getResult: &media.NowPlaying{
		Title: "Song", Artist: "Band", Start: start, End: end, ArtworkHash: "abc",
	}}
	api := New(core)

	np, err := api.GetMedia(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if np.Title != "Song" || np.Artist != "Band" || np.ArtworkHash != "abc" {
		t.Fatalf("unexpected conversion: %+v", np)
	}
	if np.Start != 1000 || np.End != 5000 {
		t.Fatalf("unexpected timestamps: %+v", np)
	}
}

func TestGetMediaPropagatesError(t *testing.T) {
	core := &fakeCore{getErr: errors.New("boom")}
	api := New(core)

	_, err := api.GetMedia(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSetActivityOmitsArtwork(t *testing.T) {
	core := &fakeCore{}
	api := New(core)

	if err := api.SetActivity(context.Background(), &NowPlaying{
		Title: "Song", Artist: "Band", Start: 1000, End: 5000, ArtworkHash: "abc",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(core.setCalls) != 1 {
		t.Fatalf("expected one SetActivity call, got %d", len(core.setCalls))
	}
	got := core.setCalls[0]
	if got.Title != "Song" || got.Artist != "Band" {
		t.Fatalf("unexpected metadata: %+v", got)
	}
	if got.ArtworkHash != "" || got.ArtworkBytes != nil {
		t.Fatalf("expected artwork to be omitted from a direct SetActivity call, got %+v", got)
	}
}

func TestSetActivityNilClears(t *testing.T) {
	core := &fakeCore{}
	api := New(core)

	if err := api.SetActivity(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(core.setCalls) != 1 || core.setCalls[0] != nil {
		t.Fatalf("expected a single nil SetActivity call, got %+v", core.setCalls)
	}
}

func TestSubscribeMediaForwardsUntilClosed(t *testing.T) {
	src := make(chan *media.NowPlaying, 2)
	core := &fakeCore{ch: src}
	api := New(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := api.SubscribeMedia(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src <- &media.NowPlaying{Title: "Song"}
	select {
	case np := <-out:
		if np.Title != "Song" {
			t.Fatalf("unexpected title %q", np.Title)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}

	close(src)
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected output channel to close once source closes")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output channel to close")
	}
}
