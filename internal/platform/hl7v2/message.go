package hl7v2

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoFieldSeparator is returned for a line that carries no "|".
var ErrNoFieldSeparator = errors.New("hl7v2: line has no field separator")

const (
	FieldSeparator      = "|"
	ComponentSeparator  = "^"
	RepetitionSeparator = "~"
)

// Segment is one pipe-delimited line of a message.
//
// Fields is the pipe split of the whole line, so Fields[0] is the segment
// name. For ordinary segments Fields[n] is field n (PID-3 is Fields[3]). For
// MSH the separator itself is MSH-1, which shifts the numbering by one:
// Fields[n] is MSH-(n+1), e.g. MSH-7 (timestamp) is Fields[6].
type Segment struct {
	Name   string
	Line   int // 1-based line number in the source text, 0 when unknown
	Fields []Field
}

// Field represents a field which can have components and repetitions.
type Field struct {
	Value      string
	Components []string   // Component-separated (^)
	Repeats    [][]string // Repetition-separated (~), each with components
}

// SplitLines splits raw text into segment lines. \r, \n and \r\n are all
// accepted as terminators. Blank lines are kept so that positions in the
// returned slice map to line numbers.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ParseSegment tokenizes a single line. The line is not trimmed; callers
// decide what counts as blank.
func ParseSegment(line string) (Segment, error) {
	if !strings.Contains(line, FieldSeparator) {
		return Segment{}, ErrNoFieldSeparator
	}
	parts := strings.Split(line, FieldSeparator)
	seg := Segment{Name: parts[0], Fields: make([]Field, 0, len(parts))}
	for i, p := range parts {
		// MSH-2 holds the encoding characters and must not be split.
		if seg.Name == "MSH" && i == 1 {
			seg.Fields = append(seg.Fields, Field{Value: p, Components: []string{p}, Repeats: [][]string{{p}}})
			continue
		}
		seg.Fields = append(seg.Fields, parseField(p))
	}
	return seg, nil
}

// parseField parses a single field, handling components (^) and repetitions (~).
func parseField(raw string) Field {
	f := Field{
		Value: raw,
	}

	reps := strings.Split(raw, RepetitionSeparator)
	for _, rep := range reps {
		f.Repeats = append(f.Repeats, strings.Split(rep, ComponentSeparator))
	}
	f.Components = f.Repeats[0]

	return f
}

// Has reports whether the segment reaches index i of its pipe split.
func (s Segment) Has(i int) bool {
	return i >= 0 && i < len(s.Fields)
}

// Field returns the raw value at index i of the pipe split and whether the
// line was long enough to carry it.
func (s Segment) Field(i int) (string, bool) {
	if !s.Has(i) {
		return "", false
	}
	return s.Fields[i].Value, true
}

// Component returns the 0-based component c of field i.
func (s Segment) Component(i, c int) (string, bool) {
	if !s.Has(i) {
		return "", false
	}
	comps := s.Fields[i].Components
	if c < 0 || c >= len(comps) {
		return "", false
	}
	return comps[c], true
}

// Header holds the MSH values needed to acknowledge a message.
type Header struct {
	SendingApp   string    // MSH-3
	SendingFac   string    // MSH-4
	ReceivingApp string    // MSH-5
	ReceivingFac string    // MSH-6
	Timestamp    time.Time // MSH-7
	Type         string    // MSH-9 message type (e.g. "ORU^R01")
	ControlID    string    // MSH-10
	Version      string    // MSH-12 (e.g. "2.5.1")
}

// ParseHeader reads the MSH segment of a raw message. The MSH must be the
// first non-blank line.
func ParseHeader(raw []byte) (*Header, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("hl7v2: message is empty")
	}
	for _, line := range SplitLines(string(raw)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "MSH") {
			return nil, fmt.Errorf("hl7v2: first segment must be MSH, got %q", line[:min(3, len(line))])
		}
		msh, err := ParseSegment(line)
		if err != nil {
			return nil, fmt.Errorf("hl7v2: failed to parse segment: %w", err)
		}
		h := &Header{}
		h.SendingApp, _ = msh.Field(2)
		h.SendingFac, _ = msh.Field(3)
		h.ReceivingApp, _ = msh.Field(4)
		h.ReceivingFac, _ = msh.Field(5)
		if ts, ok := msh.Field(6); ok && ts != "" {
			if t, err := ParseTimestamp(ts); err == nil {
				h.Timestamp = t
			}
		}
		h.Type, _ = msh.Field(8)
		h.ControlID, _ = msh.Field(9)
		h.Version, _ = msh.Field(11)
		return h, nil
	}
	return nil, fmt.Errorf("hl7v2: no segments found")
}

// ParseTimestamp parses an HL7v2 timestamp string (YYYYMMDDHHmmss, YYYYMMDDHHmm or YYYYMMDD).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 14:
		return time.Parse("20060102150405", s)
	case 12:
		return time.Parse("200601021504", s)
	case 8:
		return time.Parse("20060102", s)
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp format: %q", s)
	}
}
