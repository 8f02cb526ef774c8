package timescale

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
)

// DateTimeLayout is the recorder export format for absolute timestamps.
const DateTimeLayout = "2006-01-02 15:04:05"

// ParseTimeOfDay parses HH:MM or HH:MM:SS into seconds of the day.
// 24:00[:00] is accepted as the end of the day.
func ParseTimeOfDay(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time of day %q", core.ErrInvalidInput, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || len(p) == 0 || len(p) > 2 {
			return 0, fmt.Errorf("%w: time of day %q", core.ErrInvalidInput, s)
		}
		v[i] = n
	}
	h, m, sec := v[0], v[1], v[2]
	if m > 59 || sec > 59 || h > 24 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("%w: time of day %q out of range", core.ErrInvalidInput, s)
	}
	return h*3600 + m*60 + sec, nil
}

// FormatTimeOfDay renders seconds of the day as HH:MM:SS.
func FormatTimeOfDay(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// ParseDateTime parses a "YYYY-MM-DD HH:MM:SS" timestamp in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", core.ErrInvalidInput, s, err)
	}
	return t, nil
}
