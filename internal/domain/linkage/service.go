package linkage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/reportlink/internal/domain/patient"
	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/lock"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type: only .hl7 and .pdf reports are accepted")
	ErrParseFailed         = errors.New("report could not be parsed")
	ErrNoMatch             = errors.New("no matching patient found")
	ErrSaveFailed          = errors.New("failed to save patient data")
)

// IngestOptions selects the matching mode for one ingest.
type IngestOptions struct {
	Fuzzy bool
}

// Outcome describes what happened to one ingested report. It is returned
// alongside any error so callers can show parse diagnostics and match
// scores even on failure.
type Outcome struct {
	Report    *report.Report `json:"report,omitempty"`
	Issues    []string       `json:"issues"`
	Match     MatchResult    `json:"match"`
	PatientID string         `json:"patientID,omitempty"`
	Stored    bool           `json:"stored"`
	Duplicate bool           `json:"duplicate"`
}

// Service runs parse, match, attach and save for uploaded reports. The
// read-modify-write against the repository is serialized by the locker.
type Service struct {
	patients  patient.Repository
	matcher   *Matcher
	locker    lock.Locker
	extractor report.TextExtractor
	parse     report.Options
	logger    zerolog.Logger
}

// NewService wires the ingest pipeline. extractor may be nil, in which case
// PDF uploads fail with a dependency error.
func NewService(patients patient.Repository, matcher *Matcher, locker lock.Locker,
	extractor report.TextExtractor, parse report.Options, logger zerolog.Logger) *Service {
	return &Service{
		patients:  patients,
		matcher:   matcher,
		locker:    locker,
		extractor: extractor,
		parse:     parse,
		logger:    logger,
	}
}

// Parse routes path to the HL7 or PDF parser by extension.
func (s *Service) Parse(path string) (*report.Report, report.Issues, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hl7":
		r, issues := report.ParseHL7File(path, s.parse)
		return r, issues, nil
	case ".pdf":
		r, issues := report.ParsePDFFile(path, s.extractor, s.parse)
		return r, issues, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
}

// Ingest parses the report at path and attaches it to the matching patient.
func (s *Service) Ingest(ctx context.Context, sess auth.Session, path string, opts IngestOptions) (*Outcome, error) {
	if err := sess.Require(auth.Role.CanUploadReports, "doctors and nurses can upload reports"); err != nil {
		return nil, err
	}
	r, issues, err := s.Parse(path)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, sess, r, issues, opts)
}

// IngestHL7 is Ingest for an HL7 message already in memory.
func (s *Service) IngestHL7(ctx context.Context, sess auth.Session, data []byte, opts IngestOptions) (*Outcome, error) {
	if err := sess.Require(auth.Role.CanUploadReports, "doctors and nurses can upload reports"); err != nil {
		return nil, err
	}
	r, issues := report.ParseHL7(data, s.parse)
	return s.link(ctx, sess, r, issues, opts)
}

// Match resolves identifiers against the current patient list without
// attaching anything.
func (s *Service) Match(ctx context.Context, sess auth.Session, mrn, name, dob string, fuzzy bool) (MatchResult, error) {
	if err := sess.Require(auth.Role.CanUploadReports, "doctors and nurses can match patients"); err != nil {
		return MatchResult{}, err
	}
	patients, err := s.patients.LoadPatients(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	return s.match(patients, mrn, name, dob, fuzzy), nil
}

func (s *Service) match(patients []*patient.Patient, mrn, name, dob string, fuzzy bool) MatchResult {
	if fuzzy {
		return s.matcher.FuzzyMatchPatient(patients, mrn, name, dob)
	}
	return s.matcher.MatchPatient(patients, mrn, name, dob)
}

func (s *Service) link(ctx context.Context, sess auth.Session, r *report.Report, issues report.Issues, opts IngestOptions) (*Outcome, error) {
	out := &Outcome{Report: r, Issues: issues.Strings(), Match: MatchResult{Tier: TierNone}}
	if r == nil {
		s.logger.Warn().Str("user", sess.Username).Strs("issues", out.Issues).Msg("report parse failed")
		return out, fmt.Errorf("%w: %s", ErrParseFailed, strings.Join(out.Issues, "; "))
	}
	log := s.logger.With().
		Str("report_id", r.ReportID).
		Str("message_type", report.Str(r.MessageType)).
		Str("user", sess.Username).
		Logger()
	if len(issues) > 0 {
		log.Warn().Int("issues", len(issues)).Msg("report parsed with warnings")
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return out, err
	}
	defer unlock()

	patients, err := s.patients.LoadPatients(ctx)
	if err != nil {
		return out, err
	}
	mrn, name, dob := r.Identifiers()
	out.Match = s.match(patients, mrn, name, dob, opts.Fuzzy)
	if !out.Match.Matched() {
		log.Info().Str("tier", string(out.Match.Tier)).Float64("confidence", out.Match.Confidence).Msg("no matching patient")
		return out, ErrNoMatch
	}

	p := out.Match.Patient
	out.PatientID = p.PatientID
	log = log.With().Str("patient_id", p.PatientID).Str("tier", string(out.Match.Tier)).
		Float64("confidence", out.Match.Confidence).Logger()
	if out.Match.LowConfidence {
		log.Warn().Msg("low-confidence match")
	}

	if p.HasReport(r.ReportID) {
		out.Duplicate = true
		log.Info().Msg("report already attached")
		return out, nil
	}

	Attach(p, r)
	if err := s.patients.SavePatients(ctx, patients); err != nil {
		log.Error().Err(err).Msg("save failed")
		return out, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	out.Stored = true
	log.Info().Str("mrn", NormalizeMRN(p.MRN)).Msg("report attached")
	return out, nil
}
