// Package normalize converts the loose date, duration, and year formats
// providers emit into the canonical local forms stored in the catalog.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the release-date shapes providers actually send, tried in
// order. Output is always "2006-01-02".
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Date reduces a provider date to "YYYY-MM-DD", or "" when it cannot
// be parsed. Bare years become January 1st of that year.
func Date(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "0000-00-00" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// Duration accepts either plain seconds ("3723") or a clock string
// ("01:02:03", "62:03") and returns both the second count and the canonical
// "HH:MM:SS" text. Unparseable input yields (0, "").
func Duration(s string) (int64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ""
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, ""
		}
		nums := make([]int64, len(parts))
		for i, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil || n < 0 {
				return 0, ""
			}
			nums[i] = n
		}
		var secs int64
		if len(nums) == 3 {
			secs = nums[0]*3600 + nums[1]*60 + nums[2]
		} else {
			secs = nums[0]*60 + nums[1]
		}
		return secs, formatDuration(secs)
	}
	// Seconds, possibly with a fractional tail.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		secs := int64(f)
		return secs, formatDuration(secs)
	}
	return 0, ""
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	sec := secs % 60
	var b strings.Builder
	b.WriteString(pad2(h))
	b.WriteString(":")
	b.WriteString(pad2(m))
	b.WriteString(":")
	b.WriteString(pad2(sec))
	return b.String()
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

var titleYearRe = regexp.MustCompile(`\((\d{4})\)\s*$`)

// Year pulls a four-digit year out of the release date, falling back
// to a "(NNNN)" suffix on the title. Returns 0 when neither yields one.
func Year(releaseDate, title string) int {
	rd := strings.TrimSpace(releaseDate)
	if len(rd) >= 4 {
		if y, err := strconv.Atoi(rd[:4]); err == nil && y >= 1800 && y <= 2200 {
			return y
		}
	}
	if m := titleYearRe.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	return 0
}
