package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ehr/reportlink/internal/platform/hl7v2"
)

// ParseHL7File reads and parses an HL7 v2 file. A nil report means the parse
// failed; the issues then explain why. A successful parse may still carry
// non-fatal issues.
func ParseHL7File(path string, opts Options) (*Report, Issues) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, single(ErrFileNotFound, "File not found")
		}
		return nil, single(ErrEncoding, "Could not read HL7 file: invalid encoding")
	}
	return ParseHL7(data, opts)
}

// ParseHL7 parses an in-memory HL7 v2 message.
func ParseHL7(data []byte, opts Options) (*Report, Issues) {
	text, err := decodeText(data)
	if err != nil {
		return nil, single(ErrEncoding, "Could not read HL7 file: invalid encoding")
	}
	if strings.TrimSpace(text) == "" {
		return nil, single(ErrEmptyFile, "HL7 file is empty")
	}

	p := &hl7Parser{opts: opts, rep: &Report{}}
	for i, line := range hl7v2.SplitLines(text) {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		seg, err := hl7v2.ParseSegment(line)
		if err != nil {
			p.issues.add(ErrFormat, lineNo, "Invalid segment format at line %d: '%s'", lineNo, line)
			continue
		}
		seg.Line = lineNo
		if err := p.apply(seg); err != nil {
			p.issues.add(ErrCorruptedSegment, lineNo, "Corrupted HL7 segment at line %d: '%s'", lineNo, line)
		}
	}

	if !p.sawPID {
		p.issues.add(ErrMissingRequiredField, 0, "PID segment missing")
	}
	if len(p.rep.Observations) == 0 {
		p.issues.add(ErrMissingRequiredField, 0, "No OBX segments found")
	}
	if !p.sawPID || len(p.rep.Observations) == 0 {
		return nil, p.issues
	}

	p.rep.ReportID = opts.ids().NewID(p.rep)
	return p.rep, p.issues
}

var errLossy = errors.New("segment lost bytes in decoding")

type hl7Parser struct {
	opts   Options
	rep    *Report
	sawPID bool
	issues Issues
}

// apply folds one segment into the report. Values are committed only when
// the whole segment extracted cleanly.
func (p *hl7Parser) apply(seg hl7v2.Segment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("segment %s: %v", seg.Name, r)
		}
	}()

	switch seg.Name {
	case "MSH":
		date, typ := optField(seg, 6), optField(seg, 8)
		if lossy(date, typ) {
			return errLossy
		}
		p.rep.ReportDate, p.rep.MessageType = date, typ

	case "PID":
		ids := PatientIdentifiers{
			MRN:         optField(seg, 3),
			Name:        optField(seg, 5),
			DateOfBirth: optField(seg, 7),
		}
		if lossy(ids.MRN, ids.Name, ids.DateOfBirth) {
			return errLossy
		}
		p.rep.PatientIdentifiers = ids
		p.sawPID = true

	case "OBX":
		obs := p.observation(seg)
		if lossy(obs.Code, obs.Value, obs.Unit, obs.ReferenceRange, obs.AbnormalFlag) {
			return errLossy
		}
		p.rep.Observations = append(p.rep.Observations, obs)

	default:
		p.issues.add(ErrUnknownSegment, seg.Line, "Unknown segment '%s' at line %d", seg.Name, seg.Line)
	}
	return nil
}

func (p *hl7Parser) observation(seg hl7v2.Segment) Observation {
	var obs Observation
	if c, ok := seg.Component(3, 0); ok && seg.Fields[3].Value != "" {
		obs.Code = strPtr(c)
	}
	obs.Value = optField(seg, 4)

	// The legacy guard asks for one field beyond the one it reads, so a line
	// ending at the abnormal flag loses the flag.
	guard := 0
	if p.opts.LegacyOBXGuard {
		guard = 1
	}
	obs.Unit = guardedField(seg, 5, guard)
	obs.ReferenceRange = guardedField(seg, 6, guard)
	obs.AbnormalFlag = guardedField(seg, 7, guard)
	return obs
}

func optField(seg hl7v2.Segment, i int) *string {
	v, ok := seg.Field(i)
	if !ok {
		return nil
	}
	return strPtr(v)
}

func guardedField(seg hl7v2.Segment, i, extra int) *string {
	if !seg.Has(i + extra) {
		return nil
	}
	return optField(seg, i)
}
