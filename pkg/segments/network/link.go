// Package network provides the link-state segment and the Tailscale segment.
package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// Link kinds reported in the kind value.
const (
	KindEthernet = "ethernet"
	KindWireless = "wireless"
	KindDown     = "down"
)

// DefaultWirelessPath is the kernel's wireless statistics table.
const DefaultWirelessPath = "/proc/net/wireless"

// maxLinkQuality is the scale most drivers report link quality on.
const maxLinkQuality = 70

// InterfaceLister returns the host's network interfaces.
type InterfaceLister func(ctx context.Context) (psnet.InterfaceStatList, error)

// Wireless is one row of /proc/net/wireless.
type Wireless struct {
	Link  float64
	Level float64
}

// classify maps an interface name to a link kind by its prefix. Anything
// that is neither ethernet nor wireless (loopback, bridges, tunnels) is
// ignored.
func classify(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "veth"):
		return ""
	case strings.HasPrefix(lower, "e"):
		return KindEthernet
	case strings.HasPrefix(lower, "w"):
		return KindWireless
	default:
		return ""
	}
}

func isUp(iface psnet.InterfaceStat) bool {
	return slices.Contains(iface.Flags, "up") && len(iface.Addrs) > 0
}

// ParseWireless reads /proc/net/wireless content keyed by interface name.
func ParseWireless(r io.Reader) (map[string]Wireless, error) {
	out := make(map[string]Wireless)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			continue
		}
		link, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "."), 64)
		if err != nil {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(name)] = Wireless{Link: link, Level: level}
	}
	return out, sc.Err()
}

// Link reports which kind of network the host is on. A connected ethernet
// interface wins over wireless.
//
// Values: kind, iface, quality (0-100), level (dBm).
type Link struct {
	segments.Base
	list         InterfaceLister
	wirelessPath string
	notifier     notify.Notifier
}

// LinkOption configures a Link segment.
type LinkOption func(*Link)

// WithInterfaceLister replaces the gopsutil interface lister.
func WithInterfaceLister(l InterfaceLister) LinkOption {
	return func(s *Link) { s.list = l }
}

// WithWirelessPath reads wireless statistics from path.
func WithWirelessPath(path string) LinkOption {
	return func(s *Link) { s.wirelessPath = path }
}

// NewLink creates a network segment.
func NewLink(opts segments.Options, n notify.Notifier, lopts ...LinkOption) (*Link, error) {
	base, err := segments.NewBase("network", opts)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = notify.Nop{}
	}
	s := &Link{
		Base:         base,
		list:         psnet.InterfacesWithContext,
		wirelessPath: DefaultWirelessPath,
		notifier:     n,
	}
	for _, o := range lopts {
		o(s)
	}
	return s, nil
}

func (s *Link) wireless(name string) Wireless {
	f, err := os.Open(s.wirelessPath)
	if err != nil {
		return Wireless{}
	}
	defer f.Close()
	table, err := ParseWireless(f)
	if err != nil {
		return Wireless{}
	}
	return table[name]
}

// Poll implements segments.Segment.
func (s *Link) Poll(ctx context.Context, notifyUser bool) (segments.Values, error) {
	ifaces, err := s.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	kind, name := KindDown, ""
	for _, iface := range ifaces {
		k := classify(iface.Name)
		if k == "" || !isUp(iface) {
			continue
		}
		if k == KindEthernet {
			kind, name = k, iface.Name
			break
		}
		if kind == KindDown {
			kind, name = k, iface.Name
		}
	}

	var quality, level float64
	if kind == KindWireless {
		w := s.wireless(name)
		quality = w.Link * 100 / maxLinkQuality
		if quality > 100 {
			quality = 100
		}
		level = w.Level
	}

	if notifyUser {
		n := notify.Notification{Summary: "Network", Body: kind}
		if name != "" {
			n.Body = fmt.Sprintf("%s on %s", kind, name)
		}
		if kind == KindWireless {
			n.Value = notify.Percent(quality)
		}
		_ = s.notifier.Notify(ctx, n)
	}

	return segments.Values{
		"kind":    kind,
		"iface":   name,
		"quality": quality,
		"level":   level,
	}, nil
}
