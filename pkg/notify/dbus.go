package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busName         = "org.freedesktop.Notifications"
	objectPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod    = busName + ".Notify"
	dunstPausedProp = "org.dunstproject.cmd0.paused"
)

// DBus sends notifications over the session bus. Repeated notifications with
// the same summary replace the previous pop-up instead of stacking.
type DBus struct {
	appName string
	conn    *dbus.Conn
	obj     dbus.BusObject

	mu       sync.Mutex
	replaces map[string]uint32
}

// NewDBus connects to the session bus.
func NewDBus(appName string) (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DBus{
		appName:  appName,
		conn:     conn,
		obj:      conn.Object(busName, objectPath),
		replaces: make(map[string]uint32),
	}, nil
}

// Close releases the bus connection.
func (d *DBus) Close() error {
	return d.conn.Close()
}

// Notify implements Notifier.
func (d *DBus) Notify(ctx context.Context, n Notification) error {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	d.mu.Lock()
	replaces := d.replaces[n.Summary]
	d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if n.Value != nil {
		hints["value"] = dbus.MakeVariant(int32(*n.Value))
	}

	call := d.obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName, replaces, n.Icon, n.Summary, n.FullBody(),
		[]string{}, hints, int32(timeout.Milliseconds()))
	if call.Err != nil {
		return fmt.Errorf("notify %q: %w", n.Summary, call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify %q: %w", n.Summary, err)
	}

	d.mu.Lock()
	d.replaces[n.Summary] = id
	d.mu.Unlock()
	return nil
}

// Paused reads dunst's paused property. Servers other than dunst do not
// expose it and report an error.
func (d *DBus) Paused(ctx context.Context) (bool, error) {
	var v dbus.Variant
	err := d.obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0,
		"org.dunstproject.cmd0", "paused").Store(&v)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", dunstPausedProp, err)
	}
	paused, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("query %s: unexpected type %T", dunstPausedProp, v.Value())
	}
	return paused, nil
}
