package store

import (
	"testing"
	"time"
)

func TestValidCreatedAt(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "now", at: time.Now(), want: true},
		{name: "lower bound", at: MinCreatedAt, want: true},
		{name: "upper bound", at: MaxCreatedAt, want: true},
		{name: "below lower bound", at: MinCreatedAt.Add(-time.Nanosecond), want: false},
		{name: "above upper bound", at: MaxCreatedAt.Add(time.Nanosecond), want: false},
		{name: "year 3000", at: time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC), want: false},
		{name: "year 1000", at: time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCreatedAt(tt.at); got != tt.want {
				t.Fatalf("ValidCreatedAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
