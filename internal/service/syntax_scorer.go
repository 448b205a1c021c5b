package service

import (
	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/domain"
)

// SyntaxScorer computes the SYNTAX anatomical score, the clinical covariate
// score and the SYNTAX II style composite.
type SyntaxScorer struct{}

// NewSyntaxScorer creates a SYNTAX scorer
func NewSyntaxScorer() *SyntaxScorer {
	return &SyntaxScorer{}
}

// Score scores every lesion of the patient. Lesions below 50% and lesions
// whose segment cannot be resolved contribute nothing; the latter add a
// warning.
func (s *SyntaxScorer) Score(p *domain.PatientRecord) *domain.SyntaxResult {
	dominance := p.EffectiveDominance()
	result := &domain.SyntaxResult{
		PatientID: p.ID,
		Dominance: dominance,
		Lesions:   make([]domain.SyntaxLesionScore, 0, len(p.Lesions)),
	}

	var anatomical float64
	for i, l := range p.Lesions {
		ls, warn := s.scoreLesion(i, l, dominance)
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
		}
		anatomical += ls.Points
		result.Lesions = append(result.Lesions, ls)
	}

	result.AnatomicalScore = round(anatomical, 1)
	result.TotalScore = result.AnatomicalScore
	result.ClinicalScore = ClinicalScore(p)
	result.SyntaxIIScore = round(result.AnatomicalScore*(1+result.ClinicalScore/100), 1)
	result.RiskCategory = domain.ClassifySyntax(result.TotalScore)
	return result
}

func (s *SyntaxScorer) scoreLesion(index int, l domain.Lesion, dominance domain.Dominance) (domain.SyntaxLesionScore, *domain.Warning) {
	ls := domain.SyntaxLesionScore{
		LesionIndex: index,
		LesionID:    l.ID,
		Vessel:      l.Vessel,
	}

	profile := ClassifyLesion(l, dominance)
	if profile.Diameter == DiameterNone {
		return ls, nil
	}
	if profile.SegmentErr != nil {
		return ls, &domain.Warning{
			LesionIndex: index,
			LesionID:    l.ID,
			Message:     "SYNTAX: " + profile.SegmentErr.Error() + "; lesion not scored",
		}
	}

	weight, err := catalog.WeightFor(profile.SegmentID, dominance)
	if err != nil {
		return ls, &domain.Warning{LesionIndex: index, LesionID: l.ID, Message: "SYNTAX: " + err.Error()}
	}

	ls.SegmentID = profile.SegmentID
	ls.SegmentWeight = weight
	ls.Multiplier = diameterMultiplier(profile.Diameter)
	ls.Scored = true

	in := factorInput{lesion: l, profile: profile, weight: weight}
	for i, f := range syntaxPipeline {
		points := f.apply(in)
		// the base term is always itemised, add-ons only when they apply
		if i == 0 || points != 0 {
			ls.Factors = append(ls.Factors, domain.SyntaxFactor{Name: f.name, Points: points})
		}
		ls.Points += points
	}
	return ls, nil
}

// ClinicalScore is the fixed covariate table used by the composite score.
func ClinicalScore(p *domain.PatientRecord) float64 {
	var points float64

	switch {
	case p.Age >= 80:
		points += 10
	case p.Age >= 70:
		points += 5
	case p.Age >= 60:
		points += 2
	}

	if p.Sex == domain.SexFemale {
		points += 2
	}
	if p.Diabetes {
		points += 3
	}
	if p.CreatinineMgDL != nil && *p.CreatinineMgDL > 2.0 {
		points += 4
	}
	if ef := p.EjectionFrac; ef != nil {
		switch {
		case *ef < 30:
			points += 6
		case *ef < 50:
			points += 3
		}
	}
	if p.Hypertension {
		points++
	}
	if p.Smoking {
		points++
	}
	if p.FamilyHistory {
		points++
	}
	return points
}
