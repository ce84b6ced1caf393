package ui

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"M0001", 10, "M0001"},
		{"member@example.com", 8, "member@…"},
		{"日本語", 4, "日…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPadAndCenter(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("日本", 3); got != "日本" {
		t.Errorf("padRight wide = %q", got)
	}
	if got := center("ab", 6); got != "  ab  " {
		t.Errorf("center = %q", got)
	}
	if got := center("abc", 6); got != " abc  " {
		t.Errorf("center odd = %q", got)
	}
	if got := center("abcdefgh", 4); got != "abc…" {
		t.Errorf("center overflow = %q", got)
	}
}

func TestFormatBV(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		900:       "900",
		1500:      "1,500",
		1234567.5: "1,234,567.50",
		-2500:     "-2,500",
	}
	for in, want := range tests {
		if got := formatBV(in); got != want {
			t.Errorf("formatBV(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatJoinDate(t *testing.T) {
	tests := map[string]string{
		"":                     "unknown",
		"2024-03-01T10:00:00Z": "2024-03-01",
		"2024-03-01":           "2024-03-01",
		"last spring":          "last spring",
	}
	for in, want := range tests {
		if got := formatJoinDate(in); got != want {
			t.Errorf("formatJoinDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "member"); got != "1 member" {
		t.Errorf("got %q", got)
	}
	if got := pluralize(3, "member"); got != "3 members" {
		t.Errorf("got %q", got)
	}
}
