package service

import (
	"fmt"
	"strings"

	"github.com/coronary-score-server/internal/domain"
)

// CadRadsScorer grades coronary CT angiography findings.
type CadRadsScorer struct{}

// NewCadRadsScorer creates a CAD-RADS scorer
func NewCadRadsScorer() *CadRadsScorer {
	return &CadRadsScorer{}
}

// StenosisGrade is the CAD-RADS step function over stenosis percent.
func StenosisGrade(stenosis float64) int {
	switch {
	case stenosis <= 0:
		return 0
	case stenosis < 25:
		return 1
	case stenosis < 50:
		return 2
	case stenosis < 70:
		return 3
	case stenosis < 100:
		return 4
	default:
		return 5
	}
}

// Score grades every vessel and derives the overall category.
func (s *CadRadsScorer) Score(p *domain.PatientRecord) *domain.CadRadsResult {
	result := &domain.CadRadsResult{
		PatientID:    p.ID,
		VesselGrades: make(map[domain.Vessel]int),
		Lesions:      make([]domain.CadRadsLesionGrade, 0, len(p.Lesions)),
	}

	maxByVessel := make(map[domain.Vessel]float64)
	leftMainSignificant := false

	for i, l := range p.Lesions {
		if !l.Vessel.IsValid() {
			result.Warnings = append(result.Warnings, domain.Warning{
				LesionIndex: i,
				LesionID:    l.ID,
				Message:     fmt.Sprintf("CAD-RADS: unknown vessel %q; lesion not graded", l.Vessel),
			})
			continue
		}

		grade := StenosisGrade(l.StenosisPercent)
		result.Lesions = append(result.Lesions, domain.CadRadsLesionGrade{
			LesionIndex: i,
			LesionID:    l.ID,
			Vessel:      l.Vessel,
			Stenosis:    l.StenosisPercent,
			Grade:       grade,
		})

		if cur, seen := result.VesselGrades[l.Vessel]; !seen || grade > cur {
			result.VesselGrades[l.Vessel] = grade
		}
		if l.StenosisPercent > maxByVessel[l.Vessel] {
			maxByVessel[l.Vessel] = l.StenosisPercent
		}
		if l.StenosisPercent > result.MaxStenosis {
			result.MaxStenosis = l.StenosisPercent
		}
		if l.Vessel == domain.VesselLM && l.IsSignificant() {
			leftMainSignificant = true
		}
	}

	effective := make(map[domain.Vessel]int, len(result.VesselGrades))
	for v, g := range result.VesselGrades {
		effective[v] = g
	}
	if leftMainSignificant && effective[domain.VesselLM] < 4 {
		effective[domain.VesselLM] = 4
		result.Escalated = true
	}

	for _, v := range domain.AllVessels() {
		g, ok := effective[v]
		if !ok {
			continue
		}
		// AllVessels is in priority order, so strict > keeps the first on ties
		if g > result.OverallGrade {
			result.OverallGrade = g
			result.DominantVessel = v
		}
	}

	result.Category = cadRadsCategory(result.OverallGrade, leftMainSignificant, maxByVessel)
	result.Modifiers = cadRadsModifiers(p.Lesions)
	result.Label = cadRadsLabel(result.Category, result.Modifiers)
	return result
}

// cadRadsCategory splits grade 4 into 4A and 4B: left main disease of 50% or
// more, or three-vessel disease of 70% or more, is 4B.
func cadRadsCategory(grade int, leftMainSignificant bool, maxByVessel map[domain.Vessel]float64) string {
	if grade != 4 {
		return fmt.Sprintf("%d", grade)
	}
	threeVessel := maxByVessel[domain.VesselLAD] >= 70 &&
		maxByVessel[domain.VesselLCX] >= 70 &&
		maxByVessel[domain.VesselRCA] >= 70
	if leftMainSignificant || threeVessel {
		return "4B"
	}
	return "4A"
}

var (
	graftKeywords         = []string{"cabg", "graft", "bypass", "搭桥"}
	stentKeywords         = []string{"pci", "stent", "支架"}
	nonDiagnosticKeywords = []string{"non-diagnostic", "nondiagnostic", "non diagnostic"}
)

// cadRadsModifiers derives N, S and G in reporting order. A treated lesion
// without a recognisable method counts as stented.
func cadRadsModifiers(lesions []domain.Lesion) []domain.CadRadsModifier {
	var nonDiagnostic, stent, graft bool
	for _, l := range lesions {
		method := strings.ToLower(strings.TrimSpace(l.TreatmentMethod))
		if l.NonDiagnostic || containsAny(method, nonDiagnosticKeywords) {
			nonDiagnostic = true
		}
		switch {
		case containsAny(method, graftKeywords):
			graft = true
		case containsAny(method, stentKeywords):
			stent = true
		case l.IsTreated && method == "":
			stent = true
		}
	}

	var out []domain.CadRadsModifier
	if nonDiagnostic {
		out = append(out, domain.ModifierNonDiagnostic)
	}
	if stent {
		out = append(out, domain.ModifierStent)
	}
	if graft {
		out = append(out, domain.ModifierGraft)
	}
	return out
}

func cadRadsLabel(category string, modifiers []domain.CadRadsModifier) string {
	var b strings.Builder
	b.WriteString("CAD-RADS ")
	b.WriteString(category)
	for _, m := range modifiers {
		b.WriteString("/")
		b.WriteString(string(m))
	}
	return b.String()
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
