package media

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"  Duration: 00:00:30.04, start: 0.000000, bitrate: 120 kb/s", 30.04, true},
		{"  Duration: 01:02:03.5, start: 0.0", 3723.5, true},
		{"  Duration: 00:00:07, start: 0.0", 7, true},
		{"  Duration: N/A, bitrate: N/A", 0, false},
		{"Stream #0:0: Video: h264", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseDuration(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.InDelta(t, tc.want, got, 0.0001, tc.line)
	}
}

func TestParseStatusTime(t *testing.T) {
	got, ok := parseStatusTime("frame=   75 fps=0.0 q=-1.0 size=     256kB time=00:00:03.52 bitrate= 595.1kbits/s speed= 210x")
	assert.True(t, ok)
	assert.InDelta(t, 3.52, got, 0.0001)

	_, ok = parseStatusTime("size=N/A time=N/A bitrate=N/A")
	assert.False(t, ok)
}

func TestOutputLimit(t *testing.T) {
	v, ok := outputLimit([]string{"-i", "input.mp4", "-ss", "5.000", "-t", "7.000", "output.mp4"})
	assert.True(t, ok)
	assert.InDelta(t, 7.0, v, 0.0001)

	_, ok = outputLimit([]string{"-i", "input.mp4", "output.mp4"})
	assert.False(t, ok)

	_, ok = outputLimit([]string{"-t", "abc"})
	assert.False(t, ok)

	_, ok = outputLimit([]string{"-t"})
	assert.False(t, ok)
}

func TestScanStatusLines(t *testing.T) {
	input := "header\nframe=1 time=00:00:01.00\rframe=2 time=00:00:02.00\r\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanStatusLines)

	var lines []string
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	assert.Equal(t, []string{
		"header",
		"frame=1 time=00:00:01.00",
		"frame=2 time=00:00:02.00",
		"last",
	}, lines)
}

func TestKind(t *testing.T) {
	assert.True(t, KindMP4.IsValid())
	assert.True(t, KindMOV.IsValid())
	assert.False(t, Kind("avi").IsValid())

	assert.Equal(t, ".mp4", KindMP4.Extension())
	assert.Equal(t, ".mov", KindMOV.Extension())
	assert.Equal(t, "video/quicktime", KindMOV.MIMEType())

	k, ok := KindFromMIME("video/mp4")
	assert.True(t, ok)
	assert.Equal(t, KindMP4, k)

	k, ok = KindFromMIME("Video/QuickTime; charset=binary")
	assert.True(t, ok)
	assert.Equal(t, KindMOV, k)

	_, ok = KindFromMIME("video/webm")
	assert.False(t, ok)

	k, ok = KindFromExtension(".MOV")
	assert.True(t, ok)
	assert.Equal(t, KindMOV, k)

	_, ok = KindFromExtension("mkv")
	assert.False(t, ok)
}
