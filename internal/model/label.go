package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant a Label holds.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "none"
	}
}

// Label is a raw predictor output. The zero value is None ("no prediction"),
// which never compares equal to Int(0).
type Label struct {
	kind Kind
	text string
	num  int64
}

// None is the absent label.
var None = Label{}

// String returns a string label.
func String(s string) Label { return Label{kind: KindString, text: s} }

// Int returns an integer label.
func Int(n int64) Label { return Label{kind: KindInt, num: n} }

// Kind reports the variant held by l.
func (l Label) Kind() Kind { return l.kind }

// IsNone reports whether l carries no prediction.
func (l Label) IsNone() bool { return l.kind == KindNone }

// Text returns the string payload and whether l is a string label.
func (l Label) Text() (string, bool) { return l.text, l.kind == KindString }

// Int returns the integer payload and whether l is an integer label.
func (l Label) Int() (int64, bool) { return l.num, l.kind == KindInt }

// Equal compares kind and payload. "1" and 1 are different labels.
func (l Label) Equal(o Label) bool {
	if l.kind != o.kind {
		return false
	}
	switch l.kind {
	case KindString:
		return l.text == o.text
	case KindInt:
		return l.num == o.num
	}
	return true
}

func (l Label) String() string {
	switch l.kind {
	case KindString:
		return strconv.Quote(l.text)
	case KindInt:
		return strconv.FormatInt(l.num, 10)
	default:
		return "<none>"
	}
}

// MarshalJSON encodes strings as JSON strings, ints as numbers and None as null.
func (l Label) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case KindString:
		return json.Marshal(l.text)
	case KindInt:
		return []byte(strconv.FormatInt(l.num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, an integral number or null.
func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = None
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = String(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("label must be a string, an integer or null: %s", data)
	}
	i, err := n.Int64()
	if err != nil {
		return fmt.Errorf("label must be an integer, got %s", n)
	}
	*l = Int(i)
	return nil
}

// ParseLabel interprets a configuration value. Quoted values are always strings,
// bare integers become Int labels, empty input is None.
func ParseLabel(s string) Label {
	s = strings.TrimSpace(s)
	if s == "" {
		return None
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return String(s[1 : len(s)-1])
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	return String(s)
}
