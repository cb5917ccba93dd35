package media

import (
	"regexp"
	"strconv"
)

var (
	// Looking for: "Duration: HH:MM:SS.ms"
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	// Looking for: "time=HH:MM:SS.ms" in ffmpeg status lines.
	timeRe = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// parseDuration returns the input duration printed by ffmpeg, in seconds.
func parseDuration(line string) (float64, bool) {
	return parseClock(durationRe.FindStringSubmatch(line))
}

// parseStatusTime returns the output position of an ffmpeg status line, in seconds.
func parseStatusTime(line string) (float64, bool) {
	return parseClock(timeRe.FindStringSubmatch(line))
}

func parseClock(matches []string) (float64, bool) {
	if len(matches) < 4 {
		return 0, false
	}
	hours, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

// outputLimit returns the value of a "-t" argument, the duration ffmpeg will write.
func outputLimit(args []string) (float64, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-t" {
			v, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil || v <= 0 {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

// formatSeconds renders seconds the way they are passed to ffmpeg.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
