package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/core"
)

// DecodeTodoInput validates the writable todo fields of a JSON object.
// Unknown and read-only keys (id, user, created_at, ...) are ignored.
// With requireTitle set a missing title is an error (create and full update).
func DecodeTodoInput(raw map[string]json.RawMessage, requireTitle bool) (models.TodoInput, error) {
	var in models.TodoInput
	verr := &ValidationError{}

	if v, ok := raw["title"]; ok {
		if s, msg := decodeString(v); msg != "" {
			verr.Add("title", msg)
		} else if s = strings.TrimSpace(s); s == "" {
			verr.Add("title", MsgBlank)
		} else if utf8.RuneCountInString(s) > models.MaxTitleLength {
			verr.Add("title", MsgMaxLength(models.MaxTitleLength))
		} else {
			in.Title = &s
		}
	} else if requireTitle {
		verr.Add("title", MsgRequired)
	}

	if v, ok := raw["description"]; ok {
		if s, msg := decodeString(v); msg != "" {
			verr.Add("description", msg)
		} else {
			s = strings.TrimSpace(s)
			in.Description = &s
		}
	}

	if v, ok := raw["completed"]; ok {
		if isNull(v) {
			verr.Add("completed", MsgNull)
		} else if b, ok := decodeBool(v); !ok {
			verr.Add("completed", MsgNotBoolean)
		} else {
			in.Completed = &b
		}
	}

	if v, ok := raw["priority"]; ok {
		if s, msg := decodeString(v); msg != "" {
			verr.Add("priority", msg)
		} else if p := models.Priority(s); !p.Valid() {
			verr.Add("priority", MsgInvalidChoice(s))
		} else {
			in.Priority = &p
		}
	}

	if v, ok := raw["due_date"]; ok {
		in.DueDateSet = true
		if !isNull(v) {
			var s string
			if err := core.JSONDecode(v, &s); err != nil {
				verr.Add("due_date", MsgDatetime)
			} else if t, err := ParseDateTime(s); err != nil {
				verr.Add("due_date", MsgDatetime)
			} else {
				in.DueDate = &t
			}
		}
	}

	if err := verr.Err(); err != nil {
		return models.TodoInput{}, err
	}
	return in, nil
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDateTime accepts RFC3339, a zone-less ISO datetime (read as UTC) or a
// bare date (midnight UTC). Results are UTC truncated to microseconds.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NormalizeTime(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NormalizeTime converts t to the stored representation
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// decodeString returns the string value or a validation message
func decodeString(v json.RawMessage) (string, string) {
	if isNull(v) {
		return "", MsgNull
	}
	var s string
	if err := core.JSONDecode(v, &s); err != nil {
		return "", MsgNotString
	}
	return s, ""
}

// decodeBool accepts JSON booleans, 0/1 and the usual string spellings
func decodeBool(v json.RawMessage) (bool, bool) {
	var b bool
	if err := core.JSONDecode(v, &b); err == nil {
		return b, true
	}
	var n float64
	if err := core.JSONDecode(v, &n); err == nil {
		switch n {
		case 1:
			return true, true
		case 0:
			return false, true
		}
		return false, false
	}
	var s string
	if err := core.JSONDecode(v, &s); err == nil {
		return ParseBool(s)
	}
	return false, false
}

// ParseBool parses the boolean spellings accepted in bodies and query strings
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}
