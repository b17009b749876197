package telegram

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "seconds only", d: 42 * time.Second, want: "42秒"},
		{name: "minutes and seconds", d: 3*time.Minute + 5*time.Second, want: "3分钟 5秒"},
		{name: "full span", d: 26*time.Hour + 61*time.Minute, want: "1天 3小时 1分钟"},
		{name: "zero", d: 0, want: "0秒"},
		{name: "negative clamped", d: -time.Minute, want: "0秒"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
