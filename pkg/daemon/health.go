package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

// HealthStatus is the snapshot written to the health file and returned by
// the STATUS command.
type HealthStatus struct {
	PID       int               `json:"pid"`
	StartedAt time.Time         `json:"started_at"`
	Timestamp time.Time         `json:"timestamp"`
	Line      string            `json:"line"`
	Segments  []segments.Status `json:"segments"`
}

// Healthy reports whether every segment's last poll succeeded.
func (h *HealthStatus) Healthy() bool {
	for _, s := range h.Segments {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// SnapshotFunc produces the current health status.
type SnapshotFunc func() *HealthStatus

// WriteHealthFile writes status as indented JSON to path, atomically.
func WriteHealthFile(path string, status *HealthStatus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create health directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp health file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename health file: %w", err)
	}
	return nil
}

// ReadHealthFile reads and parses the health file at path.
func ReadHealthFile(path string) (*HealthStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}
	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal health file: %w", err)
	}
	return &status, nil
}

// RunHealthWriter writes a snapshot to path every interval until ctx is
// done, then removes the file. Write failures are logged and retried on the
// next tick.
func RunHealthWriter(ctx context.Context, path string, interval time.Duration, snap SnapshotFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	write := func() {
		if err := WriteHealthFile(path, snap()); err != nil {
			logger.Debug("health file write failed", "path", path, "error", err)
		}
	}
	write()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = os.Remove(path)
			return nil
		case <-ticker.C:
			write()
		}
	}
}
