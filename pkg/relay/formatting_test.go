// Copyright 2024-2026 Aiku AI

package relay

import "testing"

func TestFormatRelayed(t *testing.T) {
	t.Parallel()
	if got := formatRelayed("alice", "hello world"); got != "<alice> hello world" {
		t.Errorf("got %q", got)
	}
	if got := formatRelayed("alice", ""); got != "<alice> " {
		t.Errorf("empty text: got %q", got)
	}
}

func TestFormatInfo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		channels []string
		queued   int
		want     string
	}{
		{nil, 0, "chans [] queue 0"},
		{[]string{"#a"}, 3, `chans ["#a"] queue 3`},
		{[]string{"#a", "#b"}, 0, `chans ["#a", "#b"] queue 0`},
	}
	for _, tt := range tests {
		if got := formatInfo(tt.channels, tt.queued); got != tt.want {
			t.Errorf("formatInfo(%v, %d): got %q, want %q", tt.channels, tt.queued, got, tt.want)
		}
	}
}
