package artwork

import "testing"

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore()
	hash := s.Set("image/png", []byte("fake png bytes"))

	art := s.Get(hash)
	if art == nil {
		t.Fatal("expected artwork for matching hash")
	}
	if art.MIME != "image/png" {
		t.Fatalf("unexpected mime: %s", art.MIME)
	}
}

func TestStoreGetMismatchedHashReturnsNil(t *testing.T) {
	s := NewStore()
	s.Set("image/png", []byte("fake png bytes"))

	if got := s.Get("not-a-real-hash"); got != nil {
		t.Fatal("expected nil for mismatched hash")
	}
}

func TestStoreGetBeforeSetReturnsNil(t *testing.T) {
	s := NewStore()
	if got := s.Get("anything"); got != nil {
		t.Fatal("expected nil before any Set")
	}
}

func TestStoreSetReplacesPrevious(t *testing.T) {
	s := NewStore()
	oldHash := s.Set("image/png", []byte("old"))
	newHash := s.Set("image/jpeg", []byte("new"))

	if oldHash == newHash {
		t.Fatal("expected different hashes for different content")
	}
	if got := s.Get(oldHash); got != nil {
		t.Fatal("expected old artwork to be replaced, not retrievable")
	}
	if got := s.Get(newHash); got == nil || got.MIME != "image/jpeg" {
		t.Fatal("expected new artwork retrievable by its hash")
	}
}
