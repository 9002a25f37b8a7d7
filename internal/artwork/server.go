package artwork

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nowcast-run/agent/internal/logging"
)

var log = logging.L("artwork")

// Server exposes the Store's current image at GET /{hash} on an
// ephemeral localhost port.
type Server struct {
	store    *Store
	listener net.Listener
	http     *http.Server
}

// NewServer binds a listener on bindHost (host:port, port 0 picks an
// ephemeral port) and wires the /{hash} route to store.
func NewServer(bindHost string, store *Store) (*Server, error) {
	ln, err := net.Listen("tcp", bindHost)
	if err != nil {
		return nil, fmt.Errorf("bind artwork server: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{store: store, listener: ln}
	mux.HandleFunc("/", s.handle)
	s.http = &http.Server{Handler: mux}

	return s, nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve blocks, accepting connections until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Path[1:] // strip leading '/'

	art := s.store.Get(hash)
	if art == nil {
		http.NotFound(w, r)
		return
	}

	log.Info("serving artwork", "hash", hash)
	w.Header().Set("Content-Type", art.MIME)
	w.WriteHeader(http.StatusOK)
	w.Write(art.Bytes)
}
