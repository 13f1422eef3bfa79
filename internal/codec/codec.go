// Package codec converts events to and from the pipe-delimited wire format
// used on the bus and for IPC:
//
//	title|kind|key1=value1|key2=value2
//
// Numeric values (memory, cpu, timestamp) are written as a bracketed list of
// their 8 little-endian bytes, e.g. cpu=[0,0,0,0,0,0,89,64]. Description
// values are written verbatim. A literal '|' or '\' inside the title or a
// description is escaped with a backslash.
//
// Decode re-stamps the event with the receiver's clock; the sender's
// timestamp is not carried across the wire.
package codec

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/statusd/internal/model"
)

const (
	separator = '|'
	escape    = '\\'

	// minSegments is title + kind.
	minSegments = 2
)

// DecodeError reports malformed event bytes.
type DecodeError struct {
	Input  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %q: %s", e.Input, e.Reason)
}

func decodeErr(input []byte, format string, args ...any) error {
	in := string(input)
	if len(in) > 128 {
		in = in[:128] + "..."
	}
	return &DecodeError{Input: in, Reason: fmt.Sprintf(format, args...)}
}

// Encode renders e in wire format. Fields are written in model.FieldKeys order
// so the output is deterministic.
func Encode(e *model.Event) []byte {
	var buf bytes.Buffer
	writeEscaped(&buf, e.Title)
	buf.WriteByte(separator)
	buf.WriteString(strconv.Itoa(int(e.Kind)))
	for _, key := range model.FieldKeys {
		v, ok := e.Fields[key]
		if !ok {
			continue
		}
		buf.WriteByte(separator)
		buf.WriteString(key.String())
		buf.WriteByte('=')
		if key == model.FieldDescription {
			writeEscaped(&buf, string(v.Bytes()))
		} else {
			writeByteList(&buf, v.Bytes())
		}
	}
	return buf.Bytes()
}

// Decode parses wire bytes and stamps the result with time.Now.
func Decode(data []byte) (*model.Event, error) {
	return DecodeAt(data, time.Now())
}

// DecodeAt parses wire bytes and stamps the result with now.
func DecodeAt(data []byte, now time.Time) (*model.Event, error) {
	segments, err := split(data)
	if err != nil {
		return nil, err
	}
	if len(segments) < minSegments {
		return nil, decodeErr(data, "want at least %d segments, got %d", minSegments, len(segments))
	}
	kind, err := model.ParseKind(segments[1])
	if err != nil {
		return nil, decodeErr(data, "%v", err)
	}

	event := model.NewEventAt(now, segments[0], kind)
	for _, seg := range segments[minSegments:] {
		name, raw, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, decodeErr(data, "field %q has no '='", seg)
		}
		key, err := model.ParseFieldKey(name)
		if err != nil {
			return nil, decodeErr(data, "%v", err)
		}
		if _, dup := event.Fields[key]; dup {
			return nil, decodeErr(data, "duplicate field %s", key)
		}
		var b []byte
		if key == model.FieldDescription {
			b = []byte(raw)
		} else if b, err = parseByteList(raw); err != nil {
			return nil, decodeErr(data, "field %s: %v", key, err)
		}
		v, err := model.ValueFromBytes(key, b)
		if err != nil {
			return nil, decodeErr(data, "%v", err)
		}
		event.Fields[key] = v
	}
	return event, nil
}

// split cuts data on unescaped separators and unescapes each segment.
func split(data []byte) ([]string, error) {
	var (
		segments []string
		cur      strings.Builder
	)
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case escape:
			if i+1 >= len(data) {
				return nil, decodeErr(data, "trailing escape")
			}
			i++
			cur.WriteByte(data[i])
		case separator:
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(segments, cur.String()), nil
}

func writeEscaped(buf *bytes.Buffer, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == separator || s[i] == escape {
			buf.WriteByte(escape)
		}
		buf.WriteByte(s[i])
	}
}

func writeByteList(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(c)))
	}
	buf.WriteByte(']')
}

func parseByteList(s string) ([]byte, error) {
	inner, ok := strings.CutPrefix(s, "[")
	if ok {
		inner, ok = strings.CutSuffix(inner, "]")
	}
	if !ok {
		return nil, fmt.Errorf("expected bracketed byte list, got %q", s)
	}
	if strings.TrimSpace(inner) == "" {
		return []byte{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", p)
		}
		out = append(out, byte(n))
	}
	return out, nil
}
