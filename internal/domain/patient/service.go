package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/lock"
)

var (
	ErrInvalidMRN   = errors.New("invalid MRN")
	ErrDuplicateMRN = errors.New("MRN already exists")
	ErrInvalidName  = errors.New("invalid patient name")
	ErrInvalidDOB   = errors.New("invalid date of birth")
	ErrEmptyQuery   = errors.New("search query cannot be empty")
)

var mrnPattern = regexp.MustCompile(`^MRN\d{7}$`)

// intakeDOBLayout is the MM/DD/YYYY form patient intake accepts.
const intakeDOBLayout = "01/02/2006"

type Service struct {
	repo   Repository
	locker lock.Locker
	logger zerolog.Logger
}

func NewService(repo Repository, locker lock.Locker, logger zerolog.Logger) *Service {
	return &Service{repo: repo, locker: locker, logger: logger}
}

// CreatePatient registers a patient assigned to the calling doctor.
func (s *Service) CreatePatient(ctx context.Context, sess auth.Session, mrn, name, dob string) (*Patient, error) {
	if err := sess.Require(auth.Role.CanCreatePatients, "doctors can create patients"); err != nil {
		return nil, err
	}
	mrn, name, dob = strings.TrimSpace(mrn), strings.TrimSpace(name), strings.TrimSpace(dob)

	if mrn == "" {
		return nil, fmt.Errorf("%w: MRN cannot be empty", ErrInvalidMRN)
	}
	if !mrnPattern.MatchString(mrn) {
		return nil, fmt.Errorf("%w: expected MRN followed by 7 digits (e.g., MRN1234567)", ErrInvalidMRN)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: patient name cannot be empty", ErrInvalidName)
	}
	if _, err := time.Parse(intakeDOBLayout, dob); err != nil {
		return nil, fmt.Errorf("%w: expected MM/DD/YYYY", ErrInvalidDOB)
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	patients, err := s.repo.LoadPatients(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if p.MRN == mrn {
			return nil, ErrDuplicateMRN
		}
	}

	p := New(mrn, name, dob, sess.Username)
	if err := s.repo.SavePatients(ctx, append(patients, p)); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.PatientID).Str("doctor", sess.Username).Msg("patient created")
	return p, nil
}

// Get returns one of the calling doctor's patients.
func (s *Service) Get(ctx context.Context, sess auth.Session, patientID string) (*Patient, error) {
	mine, err := s.mine(ctx, sess)
	if err != nil {
		return nil, err
	}
	for _, p := range mine {
		if p.PatientID == patientID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// ListForDoctor returns the calling doctor's patients in repository order.
func (s *Service) ListForDoctor(ctx context.Context, sess auth.Session) ([]*Patient, error) {
	return s.mine(ctx, sess)
}

// SearchForDoctor matches the query as a case-insensitive substring of the
// MRN first; names are searched only when no MRN matches.
func (s *Service) SearchForDoctor(ctx context.Context, sess auth.Session, query string) ([]*Patient, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, ErrEmptyQuery
	}
	mine, err := s.mine(ctx, sess)
	if err != nil {
		return nil, err
	}

	var results []*Patient
	for _, p := range mine {
		if strings.Contains(strings.ToLower(p.MRN), query) {
			results = append(results, p)
		}
	}
	if len(results) > 0 {
		return results, nil
	}
	for _, p := range mine {
		if strings.Contains(strings.ToLower(p.Name), query) {
			results = append(results, p)
		}
	}
	return results, nil
}

// RecentTransmissions lists every report attached to the doctor's patients,
// newest first. Reports without an HL7 timestamp sort last and otherwise
// keep repository order.
func (s *Service) RecentTransmissions(ctx context.Context, sess auth.Session) ([]Transmission, error) {
	mine, err := s.mine(ctx, sess)
	if err != nil {
		return nil, err
	}

	var out []Transmission
	var times []time.Time
	for _, p := range mine {
		for _, r := range p.Transmissions {
			date := report.Str(r.ReportDate)
			out = append(out, Transmission{
				ReportID:    r.ReportID,
				ReportDate:  date,
				DisplayDate: report.FormatReportDate(date),
				PatientID:   p.PatientID,
				PatientName: p.Name,
				PatientMRN:  p.MRN,
				Report:      r,
			})
			t, _ := r.Time()
			times = append(times, t)
		}
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]].After(times[idx[b]]) })
	sorted := make([]Transmission, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}

func (s *Service) mine(ctx context.Context, sess auth.Session) ([]*Patient, error) {
	if err := sess.Require(auth.Role.CanViewDashboard, "doctors can view their patients"); err != nil {
		return nil, err
	}
	patients, err := s.repo.LoadPatients(ctx)
	if err != nil {
		return nil, err
	}
	var mine []*Patient
	for _, p := range patients {
		if strings.EqualFold(p.AssignedDoctor, sess.Username) {
			mine = append(mine, p)
		}
	}
	return mine, nil
}
