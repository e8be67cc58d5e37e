package subtitle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimecode(t *testing.T) {
	tests := []struct {
		seconds float64
		vtt     string
		srt     string
	}{
		{0, "00:00:00.000", "00:00:00,000"},
		{3, "00:00:03.000", "00:00:03,000"},
		{1.001, "00:00:01.001", "00:00:01,001"},
		{61.5, "00:01:01.500", "00:01:01,500"},
		{3723.456, "01:02:03.456", "01:02:03,456"},
		// truncation: never rolls over into the next second
		{59.9999, "00:00:59.999", "00:00:59,999"},
		{2.9996, "00:00:02.999", "00:00:02,999"},
		{2.9999999999, "00:00:02.999", "00:00:02,999"},
		{59.99999999995, "00:00:59.999", "00:00:59,999"},
		{math.Nextafter(3, 0), "00:00:02.999", "00:00:02,999"},
		{0.29, "00:00:00.290", "00:00:00,290"},
		{4.35, "00:00:04.350", "00:00:04,350"},
		{86399.999, "23:59:59.999", "23:59:59,999"},
		{-1, "00:00:00.000", "00:00:00,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.vtt, FormatTimecode(tt.seconds, FormatVTT), "vtt %v", tt.seconds)
		assert.Equal(t, tt.srt, FormatTimecode(tt.seconds, FormatSRT), "srt %v", tt.seconds)
	}
}

func TestTimecode_RoundTripTruncates(t *testing.T) {
	values := []float64{0, 0.0004, 0.1, 0.999, 1.2345, 12.3456789, 599.9995, 3600, 45296.789, 86399.999}
	for i := 0; i < 2000; i++ {
		values = append(values, float64(i)*43.1999)
	}

	for _, s := range values {
		for _, f := range SupportedFormats {
			got, err := ParseTimecode(FormatTimecode(s, f))
			require.NoError(t, err)
			assert.Equal(t, TruncateToMillis(s), got, "format %s seconds %v", f, s)
		}
	}
}

func TestParseTimecode(t *testing.T) {
	got, err := ParseTimecode("01:02:03,456")
	require.NoError(t, err)
	assert.Equal(t, 3723.456, got)

	got, err = ParseTimecode("02:03.456")
	require.NoError(t, err)
	assert.Equal(t, 123.456, got)

	for _, bad := range []string{"", "1:2:3", "00:61:00.000", "00:00:00:000", "00:00:00.00"} {
		_, err := ParseTimecode(bad)
		assert.Error(t, err, bad)
	}
}
