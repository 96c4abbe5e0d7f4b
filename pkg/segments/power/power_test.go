package power

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const batUevent = `POWER_SUPPLY_NAME=BAT0
POWER_SUPPLY_TYPE=Battery
POWER_SUPPLY_STATUS=Discharging
POWER_SUPPLY_CAPACITY=55
POWER_SUPPLY_ENERGY_FULL=6000
POWER_SUPPLY_ENERGY_NOW=3000
POWER_SUPPLY_POWER_NOW=1500
`

func opts() segments.Options { return segments.Options{Format: "{{pct .perc}}"} }

// --- Uevent Tests ---

func TestReadUevent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uevent")
	writeFile(t, path, batUevent+"garbage line\n")

	u, err := ReadUevent(path)
	if err != nil {
		t.Fatalf("ReadUevent failed: %v", err)
	}
	if u["TYPE"] != "Battery" || u["CAPACITY"] != "55" {
		t.Errorf("uevent = %v", u)
	}
	if v, ok := u.Float("CHARGE_NOW", "ENERGY_NOW"); !ok || v != 3000 {
		t.Errorf("Float fallback = %v, %v", v, ok)
	}
	if _, ok := u.Float("MISSING"); ok {
		t.Error("Float should report missing keys")
	}
}

// --- Battery Tests ---

func TestBatteryEnergy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BAT0", "uevent"), batUevent)
	writeFile(t, filepath.Join(dir, "AC", "uevent"), "POWER_SUPPLY_TYPE=Mains\nPOWER_SUPPLY_ONLINE=0\n")

	b, err := NewBattery(opts(), dir, nil)
	if err != nil {
		t.Fatalf("NewBattery failed: %v", err)
	}
	v, err := b.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["perc"].(float64) != 55 {
		t.Errorf("perc = %v, want 55", v["perc"])
	}
	if v["time"].(float64) != 2.0 {
		t.Errorf("time = %v, want 2", v["time"])
	}
	if v["ac"].(bool) {
		t.Error("ac = true, want false")
	}
	if v["status"] != "Discharging" {
		t.Errorf("status = %v", v["status"])
	}
}

func TestBatteryChargeAndMains(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BAT1", "uevent"), `POWER_SUPPLY_TYPE=Battery
POWER_SUPPLY_STATUS=Charging
POWER_SUPPLY_CAPACITY=80
POWER_SUPPLY_CHARGE_FULL=5000
POWER_SUPPLY_CHARGE_NOW=4000
POWER_SUPPLY_CURRENT_NOW=500
`)
	writeFile(t, filepath.Join(dir, "ADP1", "uevent"), "POWER_SUPPLY_TYPE=Mains\nPOWER_SUPPLY_ONLINE=1\n")

	b, _ := NewBattery(opts(), dir, nil)
	v, err := b.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["time"].(float64) != 8.0 {
		t.Errorf("time = %v, want 8", v["time"])
	}
	if v["time_full"].(float64) != 2.0 {
		t.Errorf("time_full = %v, want 2", v["time_full"])
	}
	if !v["ac"].(bool) {
		t.Error("ac = false, want true")
	}
}

func TestBatteryChargingWithoutFull(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BAT0", "uevent"), `POWER_SUPPLY_TYPE=Battery
POWER_SUPPLY_STATUS=Charging
POWER_SUPPLY_CAPACITY=55
POWER_SUPPLY_ENERGY_NOW=3000
POWER_SUPPLY_POWER_NOW=1500
`)

	b, _ := NewBattery(opts(), dir, nil)
	v, err := b.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["time"].(float64) != 2.0 {
		t.Errorf("time = %v, want 2", v["time"])
	}
	if v["time_full"].(float64) != 0 {
		t.Errorf("time_full = %v, want 0 without a full level", v["time_full"])
	}
}

func TestBatteryNoRate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BAT0", "uevent"), "POWER_SUPPLY_TYPE=Battery\nPOWER_SUPPLY_CAPACITY=100\n")

	b, _ := NewBattery(opts(), dir, nil)
	v, err := b.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["time"].(float64) != 0 {
		t.Errorf("time = %v, want 0", v["time"])
	}
	if v["status"] != "Unknown" {
		t.Errorf("status = %v, want Unknown", v["status"])
	}
}

func TestBatteryNone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "AC", "uevent"), "POWER_SUPPLY_TYPE=Mains\nPOWER_SUPPLY_ONLINE=1\n")

	b, _ := NewBattery(opts(), dir, nil)
	v, err := b.Poll(context.Background(), false)
	if err != nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}

	b, _ = NewBattery(opts(), filepath.Join(dir, "missing"), nil)
	if _, err := b.Poll(context.Background(), false); err == nil {
		t.Error("missing directory should fail")
	}
}

func TestBatteryNotifyCritical(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BAT0", "uevent"), "POWER_SUPPLY_TYPE=Battery\nPOWER_SUPPLY_CAPACITY=5\n")
	rec := &notify.Recorder{}

	b, _ := NewBattery(opts(), dir, rec)
	if _, err := b.Poll(context.Background(), true); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sent))
	}
	if sent[0].Urgency != notify.Critical {
		t.Errorf("urgency = %v, want critical", sent[0].Urgency)
	}
}

// --- Backlight Tests ---

func TestBacklightLastWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "acpi_video0", "brightness"), "10\n")
	writeFile(t, filepath.Join(dir, "acpi_video0", "max_brightness"), "100\n")
	writeFile(t, filepath.Join(dir, "intel_backlight", "brightness"), "600\n")
	writeFile(t, filepath.Join(dir, "intel_backlight", "max_brightness"), "1200\n")
	writeFile(t, filepath.Join(dir, "zz_broken", "brightness"), "n/a\n")

	rec := &notify.Recorder{}
	b, err := NewBacklight(opts(), filepath.Join(dir, "*"), rec)
	if err != nil {
		t.Fatalf("NewBacklight failed: %v", err)
	}
	v, err := b.Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["perc"].(float64) != 50 {
		t.Errorf("perc = %v, want 50", v["perc"])
	}
	if len(rec.Sent()) != 1 {
		t.Errorf("sent %d notifications, want 1", len(rec.Sent()))
	}
}

func TestBacklightNoDevice(t *testing.T) {
	b, _ := NewBacklight(opts(), filepath.Join(t.TempDir(), "*"), nil)
	if v, err := b.Poll(context.Background(), false); err == nil || v != nil {
		t.Errorf("Poll = %v, %v; want no result", v, err)
	}
}

func TestBacklightBadGlob(t *testing.T) {
	if _, err := NewBacklight(opts(), "[", nil); err == nil {
		t.Error("malformed glob should be rejected")
	}
}
