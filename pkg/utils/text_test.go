package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("got %s", got)
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxWidth 0 returns as-is")
	}
	// Each ideograph is two columns wide.
	if got := Truncate("路基土方开挖", 4); got != "路基..." {
		t.Errorf("got %s", got)
	}
}

func TestPadding(t *testing.T) {
	tests := []struct {
		in    string
		width int
		right string
		left  string
	}{
		{"ab", 4, "ab  ", "  ab"},
		{"土方", 6, "土方  ", "  土方"},
		{"toolong", 3, "toolong", "toolong"},
	}
	for _, tt := range tests {
		if got := PadRight(tt.in, tt.width); got != tt.right {
			t.Errorf("PadRight(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.right)
		}
		if got := PadLeft(tt.in, tt.width); got != tt.left {
			t.Errorf("PadLeft(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.left)
		}
	}
	if Width("土方A") != 5 {
		t.Errorf("Width = %d, want 5", Width("土方A"))
	}
}
