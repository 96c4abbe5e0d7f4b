package network

import (
	"context"
	"errors"
	"fmt"

	"tailscale.com/client/local"
	"tailscale.com/ipn/ipnstate"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// StatusClient abstracts the tailscaled LocalAPI. *local.Client satisfies
// it.
type StatusClient interface {
	Status(ctx context.Context) (*ipnstate.Status, error)
}

// NewLocalClient returns a LocalAPI client for socket, or the platform
// default socket when empty.
func NewLocalClient(socket string) *local.Client {
	lc := &local.Client{}
	if socket != "" {
		lc.Socket = socket
	}
	return lc
}

var errNilStatus = errors.New("nil status")

// Tailscale reports the tailnet connection state.
//
// Values: state, online (bool), peers (online peer count), host.
type Tailscale struct {
	segments.Base
	client   StatusClient
	notifier notify.Notifier
}

// NewTailscale creates a tailscale segment.
func NewTailscale(opts segments.Options, client StatusClient, n notify.Notifier) (*Tailscale, error) {
	base, err := segments.NewBase("tailscale", opts)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("tailscale: nil status client")
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Tailscale{Base: base, client: client, notifier: n}, nil
}

// Poll implements segments.Segment.
func (t *Tailscale) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	st, err := t.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailscale status: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("tailscale status: %w", errNilStatus)
	}

	online, host := false, ""
	if st.Self != nil {
		online = st.Self.Online
		host = st.Self.HostName
	}
	peers := 0
	for _, k := range st.Peers() {
		if ps := st.Peer[k]; ps != nil && ps.Online {
			peers++
		}
	}

	if notifyUser {
		_ = t.notifier.Notify(ctx, notify.Notification{
			Summary: "Tailscale",
			Body:    fmt.Sprintf("%s, %d peers online", st.BackendState, peers),
		})
	}

	return segments.Values{
		"state":  st.BackendState,
		"online": online,
		"peers":  peers,
		"host":   host,
	}, nil
}
