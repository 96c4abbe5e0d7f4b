package music

import (
	"context"
	"errors"
	"testing"

	"github.com/fhs/gompd/v2/mpd"

	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
)

type fakeConn struct {
	status mpd.Attrs
	song   mpd.Attrs
	err    error
	closed bool
}

func (f *fakeConn) Status() (mpd.Attrs, error)      { return f.status, f.err }
func (f *fakeConn) CurrentSong() (mpd.Attrs, error) { return f.song, f.err }
func (f *fakeConn) Close() error                    { f.closed = true; return nil }

func playing() *fakeConn {
	return &fakeConn{
		status: mpd.Attrs{"state": "play", "elapsed": "30.000", "duration": "120.000"},
		song:   mpd.Attrs{"Artist": "Low", "Title": "Words", "Album": "I Could Live in Hope", "file": "low/words.flac"},
	}
}

func TestPollPlaying(t *testing.T) {
	rec := &notify.Recorder{}
	conn := playing()
	m, err := New(segments.Options{Format: "{{.artist}} - {{.title}}"}, "", rec,
		WithDialer(func() (Conn, error) { return conn, nil }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	v, err := m.Poll(context.Background(), true)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["state"] != "play" || v["title"] != "Words" {
		t.Errorf("values = %v", v)
	}
	if v["perc"].(float64) != 25 {
		t.Errorf("perc = %v, want 25", v["perc"])
	}
	out, _ := m.Render(0, v)
	if out != "\x01Low - Words\x0f" {
		t.Errorf("Render = %q", out)
	}
	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Summary != "Words" || sent[0].Body != "Low - I Could Live in Hope" {
		t.Errorf("notifications = %+v", sent)
	}
}

func TestTitleFallsBackToFile(t *testing.T) {
	conn := playing()
	delete(conn.song, "Title")
	m, _ := New(segments.Options{Format: "x"}, "", nil, WithDialer(func() (Conn, error) { return conn, nil }))
	v, err := m.Poll(context.Background(), false)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if v["title"] != "low/words.flac" {
		t.Errorf("title = %v", v["title"])
	}
}

func TestReconnectAfterError(t *testing.T) {
	broken := playing()
	broken.err = errors.New("connection reset")
	healthy := playing()

	dials := 0
	dial := func() (Conn, error) {
		dials++
		switch dials {
		case 1:
			return broken, nil
		case 2:
			return nil, errors.New("connection refused")
		default:
			return healthy, nil
		}
	}
	m, _ := New(segments.Options{Format: "x"}, "", nil, WithDialer(dial))
	ctx := context.Background()

	if _, err := m.Poll(ctx, false); err == nil {
		t.Fatal("first poll should fail")
	}
	if !broken.closed {
		t.Error("failed connection should be closed")
	}
	if _, err := m.Poll(ctx, false); err == nil {
		t.Fatal("second poll should fail to dial")
	}
	if _, err := m.Poll(ctx, false); err != nil {
		t.Fatalf("third poll failed: %v", err)
	}
	if _, err := m.Poll(ctx, false); err != nil {
		t.Fatalf("fourth poll failed: %v", err)
	}
	if dials != 3 {
		t.Errorf("dialed %d times, want 3", dials)
	}
	if err := m.Close(); err != nil || !healthy.closed {
		t.Errorf("Close = %v, closed = %v", err, healthy.closed)
	}
}
