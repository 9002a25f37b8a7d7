package artwork

import "context"

// Tunnel publishes a local HTTP port under a public URL.
type Tunnel interface {
	// Start begins publishing localPort and returns once the tunnel
	// process is launched; it does not block on readiness.
	Start(ctx context.Context, localPort int) error
	// PublicURL blocks until the tunnel has announced its public URL,
	// or ctx is canceled.
	PublicURL(ctx context.Context) (string, error)
}

// ManagedTunnel is a placeholder for a managed tunneling SDK shape (a
// hosted ingress service instead of a spawned sidecar process). The
// concrete SDK is an external collaborator outside this repo's scope;
// this type documents the contract a real implementation must satisfy
// so orchestrator wiring doesn't change when one is swapped in.
type ManagedTunnel struct {
	url string
}

// NewManagedTunnel returns a Tunnel that reports a pre-provisioned URL
// immediately, for deployments where the public endpoint is assigned
// out-of-band rather than discovered from a sidecar's output.
func NewManagedTunnel(url string) *ManagedTunnel {
	return &ManagedTunnel{url: url}
}

func (t *ManagedTunnel) Start(ctx context.Context, localPort int) error {
	return nil
}

func (t *ManagedTunnel) PublicURL(ctx context.Context) (string, error) {
	return t.url, nil
}
