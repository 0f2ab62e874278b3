package xtream

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID decodes a JSON field that providers send as either a number or a
// quoted string ("1234", 1234, even "1234.0"). Zero means absent or unusable.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexID(n)
		return nil
	}
	// Some panels emit floats for ids.
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexID(int64(fl))
		return nil
	}
	*f = 0
	return nil
}

// Int64 returns the decoded id.
func (f FlexID) Int64() int64 { return int64(f) }

// FlexFloat decodes a rating-like field sent as number, string, or empty.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexFloat(fl)
		return nil
	}
	*f = 0
	return nil
}

// Float64 returns the decoded value.
func (f FlexFloat) Float64() float64 { return float64(f) }

// FlexString decodes a field that may arrive as a string, number, or list of
// strings; lists are joined with ", ".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*f = ""
		return nil
	case len(s) > 0 && s[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	case len(s) > 0 && s[0] == '[':
		var list []interface{}
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		parts := make([]string, 0, len(list))
		for _, v := range list {
			switch x := v.(type) {
			case string:
				if x != "" {
					parts = append(parts, x)
				}
			case float64:
				parts = append(parts, strconv.FormatFloat(x, 'f', -1, 64))
			}
		}
		*f = FlexString(strings.Join(parts, ", "))
		return nil
	default:
		// Bare number.
		*f = FlexString(strings.Trim(s, `"`))
		return nil
	}
}

// String returns the decoded text.
func (f FlexString) String() string { return string(f) }
