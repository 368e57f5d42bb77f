package linkage

import (
	"errors"
	"math"

	"github.com/ehr/reportlink/internal/domain/patient"
)

// Weights configures how much each field contributes to a fuzzy score.
type Weights struct {
	MRN  float64
	Name float64
	DOB  float64
}

// MatchConfig tunes the matcher. Zero values are not usable; start from
// DefaultMatchConfig.
type MatchConfig struct {
	Weights        Weights
	AcceptFloor    float64 // fuzzy scores below this are no match
	HighConfidence float64 // fuzzy scores below this are flagged
	Similarity     Similarity
	DOB            DOBPolicy
	// Renormalize divides by the weights of the fields the query supplies.
	// When false every weight counts and an absent field scores 0.
	Renormalize bool
}

// DefaultMatchConfig returns Levenshtein similarity weighted 0.5/0.3/0.2
// with a floor of 60, a high-confidence threshold of 85 and weights
// renormalized over the fields the query supplies.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Weights:        Weights{MRN: 0.5, Name: 0.3, DOB: 0.2},
		AcceptFloor:    60,
		HighConfidence: 85,
		Similarity:     Levenshtein,
		DOB:            DayFirst,
		Renormalize:    true,
	}
}

// Validate rejects configurations the matcher cannot score with.
func (c MatchConfig) Validate() error {
	w := c.Weights
	if w.MRN < 0 || w.Name < 0 || w.DOB < 0 {
		return errors.New("linkage: weights must not be negative")
	}
	if w.MRN+w.Name+w.DOB == 0 {
		return errors.New("linkage: at least one weight must be positive")
	}
	if c.AcceptFloor < 0 || c.HighConfidence > 100 || c.AcceptFloor > c.HighConfidence {
		return errors.New("linkage: thresholds must satisfy 0 <= floor <= high <= 100")
	}
	if c.Similarity == nil {
		return errors.New("linkage: similarity is required")
	}
	return nil
}

// Matcher resolves report identifiers to a patient. It holds no state
// between calls; candidates are scanned in the order given.
type Matcher struct {
	cfg MatchConfig
}

func NewMatcher(cfg MatchConfig) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{cfg: cfg}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() MatchConfig { return m.cfg }

type query struct {
	mrn, name, dob string
}

type candidate struct {
	p              *patient.Patient
	mrn, name, dob string
}

func (m *Matcher) normalize(mrn, name, dob string) query {
	return query{mrn: NormalizeMRN(mrn), name: NormalizeName(name), dob: m.cfg.DOB.Normalize(dob)}
}

func (m *Matcher) candidates(patients []*patient.Patient) []candidate {
	out := make([]candidate, 0, len(patients))
	for _, p := range patients {
		if p == nil {
			continue
		}
		out = append(out, candidate{
			p:    p,
			mrn:  NormalizeMRN(p.MRN),
			name: NormalizeName(p.Name),
			dob:  m.cfg.DOB.Normalize(p.DOB),
		})
	}
	return out
}

// MatchPatient runs the deterministic tiers: exact MRN, then exact name and
// DOB. The first candidate hit in a tier wins. Duplicate MRNs resolve to the
// first stored patient.
func (m *Matcher) MatchPatient(patients []*patient.Patient, mrn, name, dob string) MatchResult {
	q := m.normalize(mrn, name, dob)
	cands := m.candidates(patients)
	if res, ok := m.exactMRN(cands, q); ok {
		return res
	}
	if res, ok := m.exactNameDOB(cands, q); ok {
		return res
	}
	return MatchResult{Tier: TierNone}
}

// FuzzyMatchPatient runs both deterministic tiers and, when they miss,
// scores every candidate and keeps the best. Ties go to the earlier
// candidate.
func (m *Matcher) FuzzyMatchPatient(patients []*patient.Patient, mrn, name, dob string) MatchResult {
	q := m.normalize(mrn, name, dob)
	cands := m.candidates(patients)
	if res, ok := m.exactMRN(cands, q); ok {
		return res
	}
	if res, ok := m.exactNameDOB(cands, q); ok {
		return res
	}

	var best MatchResult
	found := false
	for _, c := range cands {
		scores := m.scores(c, q)
		conf := m.confidence(scores, q)
		if !found || conf > best.Confidence {
			best = MatchResult{Patient: c.p, Confidence: conf, FieldScores: scores, Tier: TierFuzzy}
			found = true
		}
	}
	if !found || best.Confidence < m.cfg.AcceptFloor {
		return MatchResult{Tier: TierNone, Confidence: best.Confidence, FieldScores: best.FieldScores}
	}
	best.LowConfidence = best.Confidence < m.cfg.HighConfidence
	return best
}

func (m *Matcher) exactMRN(cands []candidate, q query) (MatchResult, bool) {
	if q.mrn != "" {
		for _, c := range cands {
			if c.mrn == q.mrn {
				return MatchResult{
					Patient:     c.p,
					Confidence:  ExactMRNConfidence,
					FieldScores: m.scores(c, q),
					Tier:        TierExactMRN,
				}, true
			}
		}
	}
	return MatchResult{}, false
}

func (m *Matcher) exactNameDOB(cands []candidate, q query) (MatchResult, bool) {
	if q.name != "" && q.dob != "" {
		for _, c := range cands {
			if c.name == q.name && c.dob == q.dob {
				return MatchResult{
					Patient:     c.p,
					Confidence:  ExactNameDOBConfidence,
					FieldScores: m.scores(c, q),
					Tier:        TierExactNameDOB,
				}, true
			}
		}
	}
	return MatchResult{}, false
}

func (m *Matcher) scores(c candidate, q query) FieldScores {
	sim := m.cfg.Similarity
	return FieldScores{
		MRN:  round2(sim(q.mrn, c.mrn)),
		Name: round2(sim(q.name, c.name)),
		DOB:  round2(sim(q.dob, c.dob)),
	}
}

// confidence is the weighted mean of the field scores. With Renormalize an
// absent query field neither raises nor lowers the score; without it the
// field scores 0 against its full weight.
func (m *Matcher) confidence(s FieldScores, q query) float64 {
	w := m.cfg.Weights
	if !m.cfg.Renormalize {
		return round2((w.MRN*s.MRN + w.Name*s.Name + w.DOB*s.DOB) / (w.MRN + w.Name + w.DOB))
	}
	var sum, total float64
	if q.mrn != "" {
		sum += w.MRN * s.MRN
		total += w.MRN
	}
	if q.name != "" {
		sum += w.Name * s.Name
		total += w.Name
	}
	if q.dob != "" {
		sum += w.DOB * s.DOB
		total += w.DOB
	}
	if total == 0 {
		return 0
	}
	return round2(sum / total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
