package systemd

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	sent, err := Ready()
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if sent {
		t.Fatalf("expected no notification without NOTIFY_SOCKET")
	}
	if got := WatchdogInterval(); got != 0 {
		t.Fatalf("WatchdogInterval=%v, want 0", got)
	}
}

func TestNotifySendsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram not available: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", path)

	cases := []struct {
		name string
		fn   func() (bool, error)
		want string
	}{
		{"ready", Ready, "READY=1"},
		{"stopping", Stopping, "STOPPING=1"},
		{"status", func() (bool, error) { return Status("serving") }, "STATUS=serving"},
	}
	buf := make([]byte, 256)
	for _, tc := range cases {
		sent, err := tc.fn()
		if err != nil || !sent {
			t.Fatalf("%s: sent=%v err=%v", tc.name, sent, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			t.Fatalf("%s: read: %v", tc.name, err)
		}
		if got := string(buf[:n]); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
