package nlu

import (
	"testing"
	"time"
)

func TestNormalizeService(t *testing.T) {
	cases := []struct{ in, want string }{
		{"haircut", "haircut"},
		{"a hair cut please", "haircut"},
		{"beard", "beard trim"},
		{"beard trim", "beard trim"},
		{"combo", "combo"},
		{"both of them", "combo"},
		{"haircut and beard", "combo"},
		{"a massage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeService(tc.in); got != tc.want {
			t.Fatalf("NormalizeService(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDate_TodayTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // a Wednesday
	if got := NormalizeDate("today", now); got != "2026-03-04" {
		t.Fatalf("today = %q", got)
	}
	if got := NormalizeDate("Tomorrow", now); got != "2026-03-05" {
		t.Fatalf("tomorrow = %q", got)
	}
}

func TestNormalizeDate_WeekdayStrictlyAfterToday(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // Wednesday
	// Friday is two days out.
	if got := NormalizeDate("friday", now); got != "2026-03-06" {
		t.Fatalf("friday = %q", got)
	}
	// Monday already passed this week: next week's Monday.
	if got := NormalizeDate("monday", now); got != "2026-03-09" {
		t.Fatalf("monday = %q", got)
	}
	// Asking for today's own weekday always rolls a full week.
	if got := NormalizeDate("wednesday", now); got != "2026-03-11" {
		t.Fatalf("wednesday = %q", got)
	}
}

func TestNormalizeDate_PassThrough(t *testing.T) {
	now := time.Now()
	if got := NormalizeDate("2026-04-01", now); got != "2026-04-01" {
		t.Fatalf("absolute date should pass through, got %q", got)
	}
	if got := NormalizeDate("", now); got != "" {
		t.Fatalf("empty should stay empty, got %q", got)
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := []struct{ in, want string }{
		{"3pm", "3:00 PM"},
		{"3 pm", "3:00 PM"},
		{"3:30 PM", "3:30 PM"},
		{"15:00", "3:00 PM"},
		{"9am", "9:00 AM"},
		{"noonish", "noonish"}, // unparseable passes through
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTime(tc.in); got != tc.want {
			t.Fatalf("NormalizeTime(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"(555) 123-4567", "5551234567"},
		{"+1 555 123 4567", "5551234567"}, // 11 digits: keep last 10
		{"123456789", ""},                 // fewer than 10: absent
		{"no digits", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHumanDate(t *testing.T) {
	if got := HumanDate("2026-03-06"); got != "Friday, March 6" {
		t.Fatalf("HumanDate = %q", got)
	}
	if got := HumanDate("next week sometime"); got != "next week sometime" {
		t.Fatalf("unparseable date should pass through, got %q", got)
	}
}
