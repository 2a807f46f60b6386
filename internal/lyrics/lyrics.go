// Package lyrics maps playback positions to timed lyric lines and parses
// LRC-format lyric files.
package lyrics

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"resona/pkg/models"
)

// IndexForPosition returns the index of the last lyric line whose timestamp
// is at or before positionMs, or -1 if no line qualifies. For a fixed line
// list the result is monotonic non-decreasing in positionMs.
func IndexForPosition(lines []models.LyricLine, positionMs int64) int {
	// Lines are timestamp-ascending, so binary search for the first line
	// strictly after the position and step back one.
	n := sort.Search(len(lines), func(i int) bool {
		return lines[i].TimestampMs > positionMs
	})
	return n - 1
}

// lrcTimeTag matches timestamps like [01:23.45], [01:23.456] or [01:23].
// Multiple tags on one line all receive the same text.
var lrcTimeTag = regexp.MustCompile(`\[(\d+):(\d{1,2})(?:\.(\d{1,3}))?\]`)

// ParseLRC reads LRC-format lyrics and returns the lines sorted by
// ascending timestamp. Metadata tags ([ar:...], [ti:...]) and malformed
// lines are skipped rather than reported.
func ParseLRC(r io.Reader) ([]models.LyricLine, error) {
	var lines []models.LyricLine

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		tags := lrcTimeTag.FindAllStringSubmatchIndex(raw, -1)
		if len(tags) == 0 {
			continue
		}

		text := strings.TrimSpace(raw[tags[len(tags)-1][1]:])
		for _, tag := range tags {
			minutes, err := strconv.ParseInt(raw[tag[2]:tag[3]], 10, 64)
			if err != nil {
				continue
			}
			seconds, err := strconv.ParseInt(raw[tag[4]:tag[5]], 10, 64)
			if err != nil || seconds >= 60 {
				continue
			}
			var fractionMs int64
			if tag[6] >= 0 {
				frac := raw[tag[6]:tag[7]]
				f, err := strconv.ParseInt(frac, 10, 64)
				if err != nil {
					continue
				}
				switch len(frac) {
				case 1:
					fractionMs = f * 100
				case 2:
					fractionMs = f * 10
				default:
					fractionMs = f
				}
			}
			lines = append(lines, models.LyricLine{
				TimestampMs: minutes*60_000 + seconds*1_000 + fractionMs,
				Text:        text,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].TimestampMs < lines[j].TimestampMs
	})
	return lines, nil
}
