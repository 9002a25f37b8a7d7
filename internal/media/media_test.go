package media

import "testing"

func TestHashArtworkIsDeterministic(t *testing.T) {
	data := []byte("cover art bytes")
	h1 := hashArtwork(data)
	h2 := hashArtwork(data)
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %s and %s", h1, h2)
	}
	if h1 == hashArtwork([]byte("different bytes")) {
		t.Fatal("expected different inputs to hash differently")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars for blake3-256, got %d", len(h1))
	}
}
