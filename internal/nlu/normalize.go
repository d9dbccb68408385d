package nlu

import (
	"strings"
	"time"
)

// Deterministic post-extraction normalization. These run on whatever text the
// classifier produced, so they accept free-form phrases and either map them to
// a canonical value or pass them through.

// NormalizeService maps free-form service text onto the fixed service
// enumeration: "haircut", "beard trim", "combo". Unrecognized text is empty.
func NormalizeService(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return ""
	}
	hasBeard := strings.Contains(t, "beard")
	hasHair := strings.Contains(t, "haircut") || strings.Contains(t, "hair cut")
	switch {
	case strings.Contains(t, "combo") || strings.Contains(t, "both") || (hasBeard && hasHair):
		return "combo"
	case hasBeard:
		return "beard trim"
	case hasHair:
		return "haircut"
	default:
		return ""
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NormalizeDate resolves relative dates against now. "today" and "tomorrow"
// map to calendar dates; a weekday name maps to its next occurrence strictly
// after today (asking for today's own weekday rolls a full week). Anything
// else is assumed already absolute and passes through unchanged.
func NormalizeDate(s string, now time.Time) string {
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "":
		return ""
	case "today":
		return now.Format("2006-01-02")
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if wd, ok := weekdays[t]; ok {
		delta := int(wd) - int(now.Weekday())
		if delta <= 0 {
			delta += 7
		}
		return now.AddDate(0, 0, delta).Format("2006-01-02")
	}
	return strings.TrimSpace(s)
}

// NormalizeTime renders a clock time as 12-hour "3:00 PM" when the input is
// parseable; otherwise the text passes through unchanged.
func NormalizeTime(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	compact := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(t, " ", ""), ".", ""))
	for _, layout := range []string{"3:04PM", "3PM", "15:04", "15"} {
		if parsed, err := time.Parse(layout, compact); err == nil {
			return parsed.Format("3:04 PM")
		}
	}
	return t
}

// NormalizePhone strips non-digits; with 10 or more digits the last 10 are
// kept, otherwise the value is treated as absent.
func NormalizePhone(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 10 {
		return ""
	}
	return d[len(d)-10:]
}

// HumanDate renders a canonical 2006-01-02 date as spoken text. Dates in any
// other form pass through so a raw phrase is still speakable.
func HumanDate(s string) string {
	if parsed, err := time.Parse("2006-01-02", s); err == nil {
		return parsed.Format("Monday, January 2")
	}
	return s
}
