package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var timecodeRe = regexp.MustCompile(`^(?:(\d{2,}):)?(\d{2}):(\d{2})[.,](\d{3})$`)

// Millis truncates seconds to whole milliseconds. Negative and NaN values clamp to 0.
//
// seconds*1000 can land on either side of an integer through float error alone
// (1.001*1000 is 1000.999...), so the floor is corrected against the millisecond
// value's own float64: n counts only when n/1000 <= seconds.
func Millis(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	ms := int64(math.Floor(seconds * 1000))
	if float64(ms)/1000 > seconds {
		ms--
	} else if float64(ms+1)/1000 <= seconds {
		ms++
	}
	return ms
}

// TruncateToMillis drops everything below one millisecond.
func TruncateToMillis(seconds float64) float64 {
	return float64(Millis(seconds)) / 1000
}

// FormatTimecode renders HH:MM:SS.mmm (vtt) or HH:MM:SS,mmm (srt), truncating to milliseconds.
func FormatTimecode(seconds float64, f Format) string {
	ms := Millis(seconds)
	sep := '.'
	if f == FormatSRT {
		sep = ','
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%03d",
		ms/3_600_000,
		(ms/60_000)%60,
		(ms/1000)%60,
		sep,
		ms%1000)
}

// ParseTimecode accepts either separator and an optional hours field.
func ParseTimecode(tc string) (float64, error) {
	ms, err := parseMillis(tc)
	if err != nil {
		return 0, err
	}
	return float64(ms) / 1000, nil
}

func parseDuration(tc string) (time.Duration, error) {
	ms, err := parseMillis(tc)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseMillis(tc string) (int64, error) {
	m := timecodeRe.FindStringSubmatch(tc)
	if m == nil {
		return 0, fmt.Errorf("invalid timecode: %q", tc)
	}
	var h int64
	if m[1] != "" {
		h, _ = strconv.ParseInt(m[1], 10, 64)
	}
	mins, _ := strconv.ParseInt(m[2], 10, 64)
	secs, _ := strconv.ParseInt(m[3], 10, 64)
	millis, _ := strconv.ParseInt(m[4], 10, 64)
	if mins > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid timecode: %q", tc)
	}
	return h*3_600_000 + mins*60_000 + secs*1000 + millis, nil
}
