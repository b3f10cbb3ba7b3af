package backfill

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		literal string
		want    time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"0s", 0},
		{"1s", time.Second},
		{"90s", 90 * time.Second},
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"24h", 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := ParseDuration(tt.literal)
			if err != nil {
				t.Fatalf("ParseDuration(%q) error = %v", tt.literal, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.literal, got, tt.want)
			}
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	literals := []string{
		"",
		"1",
		"h",
		"-1h",
		"1.5h",
		"1 h",
		"one hour",
		"1y",
		"10hh",
		"h1",
		"99999999999999999999d",
	}

	for _, literal := range literals {
		t.Run(literal, func(t *testing.T) {
			_, err := ParseDuration(literal)
			if !errors.Is(err, ErrInvalidDuration) {
				t.Errorf("ParseDuration(%q) error = %v, want ErrInvalidDuration", literal, err)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{time.Second, "1s"},
		{90 * time.Second, "90s"},
		{time.Minute, "1m"},
		{90 * time.Minute, "90m"},
		{time.Hour, "1h"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "36h"},
		{14 * 24 * time.Hour, "2w"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatDuration_RoundTrips(t *testing.T) {
	durations := []time.Duration{
		250 * time.Millisecond,
		time.Second,
		45 * time.Minute,
		time.Hour,
		36 * time.Hour,
		24 * time.Hour,
		7 * 24 * time.Hour,
	}

	for _, d := range durations {
		literal := FormatDuration(d)
		parsed, err := ParseDuration(literal)
		if err != nil {
			t.Fatalf("ParseDuration(FormatDuration(%v)) error = %v", d, err)
		}
		if parsed != d {
			t.Errorf("round trip %v -> %q -> %v", d, literal, parsed)
		}
	}
}
