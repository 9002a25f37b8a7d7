package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestServerServesMatchingHashAndReturns404Otherwise(t *testing.T) {
	store := NewStore()
	hash := store.Set("image/png", []byte("cover bytes"))

	srv, err := NewServer("127.0.0.1:0", store)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", srv.Port())

	resp, err := http.Get(base + "/" + hash)
	if err != nil {
		t.Fatalf("GET matching hash: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "cover bytes" {
		t.Fatalf("unexpected body: %s", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content-type: %s", ct)
	}

	resp2, err := http.Get(base + "/not-the-right-hash")
	if err != nil {
		t.Fatalf("GET mismatched hash: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
