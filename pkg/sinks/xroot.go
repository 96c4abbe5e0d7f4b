package sinks

import (
	"context"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// XRoot sets WM_NAME on the root window, which dwm-style window managers
// draw as the status text. The tagged string is passed through unchanged.
type XRoot struct {
	conn *xgb.Conn
	set  func(name []byte) error
}

// NewXRoot connects to display ("" uses $DISPLAY).
func NewXRoot(display string) (*XRoot, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect to X display: %w", err)
	}
	root := xproto.Setup(conn).DefaultScreen(conn).Root

	x := &XRoot{conn: conn}
	x.set = func(name []byte) error {
		// Checked request: the reply round-trip flushes the change before
		// Publish returns.
		return xproto.ChangePropertyChecked(conn, xproto.PropModeReplace, root,
			xproto.AtomWmName, xproto.AtomString, 8, uint32(len(name)), name).Check()
	}
	return x, nil
}

// Name implements Sink.
func (x *XRoot) Name() string { return "xroot" }

// Publish implements Sink.
func (x *XRoot) Publish(_ context.Context, status string) error {
	if err := x.set([]byte(status)); err != nil {
		return fmt.Errorf("set root WM_NAME: %w", err)
	}
	return nil
}

// Close closes the X connection.
func (x *XRoot) Close() {
	if x.conn != nil {
		x.conn.Close()
	}
}
