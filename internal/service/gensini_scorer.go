package service

import (
	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/domain"
)

// GensiniScorer quantifies stenosis severity weighted by myocardial territory.
type GensiniScorer struct{}

// NewGensiniScorer creates a Gensini scorer
func NewGensiniScorer() *GensiniScorer {
	return &GensiniScorer{}
}

// gensiniBands maps the lower bound of each published stenosis band to its
// severity index. Values between bands round down.
var gensiniBands = []struct {
	from  float64
	index float64
}{
	{100, 32},
	{99, 16},
	{90, 8},
	{75, 4},
	{50, 2},
	{25, 1},
}

// SeverityIndex returns the Gensini severity index for a stenosis percent.
func SeverityIndex(stenosis float64) float64 {
	for _, b := range gensiniBands {
		if stenosis >= b.from {
			return b.index
		}
	}
	return 0
}

// GensiniMultiplier returns the territory multiplier for a vessel position.
// It reports false when the position has no published multiplier.
//
// The table does not vary with dominance. Only dominant-side values are
// published (proximal LCX 2.5, mid/distal RCA 1) and the same values are
// used for a non-dominant RCA or LCX. Dominance still matters for lesions
// given by segment id, which must exist under the patient's dominance.
func GensiniMultiplier(vessel domain.Vessel, location domain.Location) (float64, bool) {
	switch vessel {
	case domain.VesselLM:
		return 5, true
	case domain.VesselLAD:
		switch location {
		case domain.LocationProximal:
			return 2.5, true
		case domain.LocationMid:
			return 1.5, true
		case domain.LocationDistal:
			return 1, true
		}
	case domain.VesselLCX:
		switch location {
		case domain.LocationProximal:
			return 2.5, true
		case domain.LocationMid, domain.LocationDistal:
			return 1, true
		}
	case domain.VesselD, domain.VesselOM, domain.VesselRCA:
		return 1, true
	case domain.VesselPDA, domain.VesselPLV:
		return 0.5, true
	}
	return 0, false
}

// Score computes per-lesion contributions, per-vessel sums and the total.
func (s *GensiniScorer) Score(p *domain.PatientRecord) *domain.GensiniResult {
	dominance := p.EffectiveDominance()
	result := &domain.GensiniResult{
		PatientID:    p.ID,
		VesselScores: make(map[domain.Vessel]float64),
		Lesions:      make([]domain.GensiniLesionScore, 0, len(p.Lesions)),
	}

	var total float64
	for i, l := range p.Lesions {
		ls := domain.GensiniLesionScore{
			LesionIndex:   i,
			LesionID:      l.ID,
			Vessel:        l.Vessel,
			Location:      l.Location,
			Stenosis:      l.StenosisPercent,
			SeverityIndex: SeverityIndex(l.StenosisPercent),
		}

		multiplier, err := s.lesionMultiplier(l, dominance, &ls)
		switch {
		case err != nil && !l.IsSignificant():
			// nothing to lose below 50%
		case err != nil:
			result.Warnings = append(result.Warnings, domain.Warning{
				LesionIndex: i,
				LesionID:    l.ID,
				Message:     "Gensini: " + err.Error() + "; lesion not scored",
			})
		default:
			ls.Multiplier = multiplier
			if l.IsSignificant() {
				ls.Contribution = ls.SeverityIndex * multiplier
			}
		}

		if ls.Vessel.IsValid() {
			result.VesselScores[ls.Vessel] += ls.Contribution
		}
		total += ls.Contribution
		result.Lesions = append(result.Lesions, ls)
	}

	for v, score := range result.VesselScores {
		result.VesselScores[v] = round(score, 2)
	}
	result.TotalScore = round(total, 2)
	result.Severity = domain.ClassifyGensini(result.TotalScore)
	return result
}

// lesionMultiplier resolves the scoring position of l. An explicit segment
// overrides the lesion's own vessel and location and must exist under the
// patient's dominance.
func (s *GensiniScorer) lesionMultiplier(l domain.Lesion, dominance domain.Dominance, ls *domain.GensiniLesionScore) (float64, error) {
	vessel, location := l.Vessel, l.Location
	if l.SegmentID != nil {
		if _, err := catalog.WeightFor(*l.SegmentID, dominance); err != nil {
			return 0, err
		}
		seg, _ := catalog.Lookup(*l.SegmentID)
		vessel, location = seg.Vessel, seg.Location
		ls.Vessel, ls.Location = vessel, location
	}

	m, ok := GensiniMultiplier(vessel, location)
	if !ok {
		return 0, &domain.LookupError{Vessel: vessel, Location: location, Dominance: dominance, Err: domain.ErrUnresolvedSegment}
	}
	return m, nil
}
