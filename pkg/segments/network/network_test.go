package network

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	psnet "github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

const wirelessTable = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
wlp3s0: 0000   56.  -54.  -256        0      0      0      0    12        0
`

func iface(name string, up bool, addrs ...string) psnet.InterfaceStat {
	st := psnet.InterfaceStat{Name: name}
	if up {
		st.Flags = []string{"up", "broadcast", "multicast"}
	}
	for _, a := range addrs {
		st.Addrs = append(st.Addrs, psnet.InterfaceAddr{Addr: a})
	}
	return st
}

func lister(ifaces ...psnet.InterfaceStat) InterfaceLister {
	return func(context.Context) (psnet.InterfaceStatList, error) { return ifaces, nil }
}

func wirelessFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wireless")
	if err := os.WriteFile(path, []byte(wirelessTable), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Link Tests ---

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"enp0s31f6", KindEthernet},
		{"eth0", KindEthernet},
		{"wlp3s0", KindWireless},
		{"wlan0", KindWireless},
		{"lo", ""},
		{"docker0", ""},
		{"veth12ab", ""},
		{"tailscale0", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.name); got != tt.want {
				t.Errorf("classify(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseWireless(t *testing.T) {
	table, err := ParseWireless(strings.NewReader(wirelessTable))
	if err != nil {
		t.Fatalf("ParseWireless failed: %v", err)
	}
	w, ok := table["wlp3s0"]
	if !ok {
		t.Fatalf("wlp3s0 missing from %v", table)
	}
	if w.Link != 56 || w.Level != -54 {
		t.Errorf("wireless = %+v", w)
	}
	if len(table) != 1 {
		t.Errorf("table has %d rows, want 1", len(table))
	}
}

func TestLinkWireless(t *testing.T) {
	rec := &notify.Recorder{}
	s, err := NewLink(segments.Options{Format: "{{.kind}}"}, rec,
		WithInterfaceLister(lister(
			iface("lo", true, "127.0.0.1/8"),
			iface("enp0s31f6", false),
			iface("wlp3s0", true, "192.168.1.20/24"),
		)),
		WithWirelessPath(wirelessFile(t)))
	if err != nil {
		t.Fatalf("NewLink failed: %v", err)
	}

	v, err := s.Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["kind"] != KindWireless || v["iface"] != "wlp3s0" {
		t.Errorf("values = %v", v)
	}
	if v["quality"].(float64) != 80 {
		t.Errorf("quality = %v, want 80", v["quality"])
	}
	if v["level"].(float64) != -54 {
		t.Errorf("level = %v, want -54", v["level"])
	}
	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Value == nil || *sent[0].Value != 80 {
		t.Errorf("notifications = %+v", sent)
	}
}

func TestLinkEthernetWins(t *testing.T) {
	s, _ := NewLink(segments.Options{Format: "x"}, nil,
		WithInterfaceLister(lister(
			iface("wlp3s0", true, "192.168.1.20/24"),
			iface("enp0s31f6", true, "10.0.0.2/24"),
		)),
		WithWirelessPath(wirelessFile(t)))

	v, err := s.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["kind"] != KindEthernet || v["iface"] != "enp0s31f6" {
		t.Errorf("values = %v", v)
	}
	if v["quality"].(float64) != 0 {
		t.Errorf("quality = %v, want 0 for ethernet", v["quality"])
	}
}

func TestLinkDown(t *testing.T) {
	s, _ := NewLink(segments.Options{Format: "x"}, nil,
		WithInterfaceLister(lister(iface("lo", true, "127.0.0.1/8"), iface("wlan0", true))))
	v, err := s.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["kind"] != KindDown || v["iface"] != "" {
		t.Errorf("values = %v", v)
	}
}

func TestLinkListError(t *testing.T) {
	s, _ := NewLink(segments.Options{Format: "x"}, nil,
		WithInterfaceLister(func(context.Context) (psnet.InterfaceStatList, error) {
			return nil, errors.New("netlink")
		}))
	if v, err := s.Poll(context.Background(), false); err == nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}
}
