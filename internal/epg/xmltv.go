package epg

import (
	"fmt"
	"regexp"
	"time"
)

// xmltvTimeRe matches XMLTV timestamps: fourteen digits, optionally followed
// by a numeric zone offset ("20240131203000 +0100").
var xmltvTimeRe = regexp.MustCompile(`^(\d{14}) ?([+-]\d{4})?`)

// ParseXMLTVTime converts an XMLTV timestamp to the local normalized form
// "2006-01-02 15:04:05". Offsets are applied, converting to UTC; a timestamp
// without one is taken as already UTC.
func ParseXMLTVTime(s string) (string, error) {
	m := xmltvTimeRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("epg: unrecognized xmltv time %q", s)
	}
	layout := "20060102150405"
	value := m[1]
	if m[2] != "" {
		layout += " -0700"
		value += " " + m[2]
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", fmt.Errorf("epg: parse xmltv time %q: %w", s, err)
	}
	return t.UTC().Format("2006-01-02 15:04:05"), nil
}

// FormatXMLTVTime is the inverse of ParseXMLTVTime: normalized local form
// back to the wire shape with an explicit UTC offset.
func FormatXMLTVTime(s string) (string, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return "", fmt.Errorf("epg: parse normalized time %q: %w", s, err)
	}
	return t.Format("20060102150405") + " +0000", nil
}
