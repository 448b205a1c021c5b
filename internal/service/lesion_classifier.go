package service

import (
	"strings"

	"github.com/coronary-score-server/internal/catalog"
	"github.com/coronary-score-server/internal/domain"
)

// DiameterClass is the diameter-reduction category of a lesion.
type DiameterClass string

const (
	DiameterNone        DiameterClass = "none"        // below 50%
	DiameterSignificant DiameterClass = "significant" // 50-99%, or 100% without CTO flag
	DiameterOcclusion   DiameterClass = "occlusion"   // CTO in the 99-100% band
)

// BifurcationType is the SYNTAX bifurcation sub-type.
type BifurcationType string

const (
	BifurcationNone    BifurcationType = "none"
	BifurcationSimple  BifurcationType = "simple"
	BifurcationComplex BifurcationType = "complex"
)

// LengthClass splits lesions at the 20 mm SYNTAX threshold.
type LengthClass string

const (
	LengthUnknown LengthClass = "unknown"
	LengthShort   LengthClass = "short"
	LengthLong    LengthClass = "long"
)

// LesionProfile holds the categorical inputs derived from one lesion.
type LesionProfile struct {
	Diameter    DiameterClass
	Bifurcation BifurcationType
	Length      LengthClass
	SegmentID   int
	SegmentErr  error
}

// complexMedina lists the true bifurcations: disease in both the main vessel
// and the side branch.
var complexMedina = map[string]bool{
	"1,1,1": true,
	"1,0,1": true,
	"0,1,1": true,
}

// ClassifyLesion derives the profile of l under dominance.
func ClassifyLesion(l domain.Lesion, dominance domain.Dominance) LesionProfile {
	p := LesionProfile{
		Diameter:    classifyDiameter(l),
		Bifurcation: classifyBifurcation(l),
		Length:      classifyLength(l),
	}
	p.SegmentID, p.SegmentErr = resolveLesionSegment(l, dominance)
	return p
}

func classifyDiameter(l domain.Lesion) DiameterClass {
	switch {
	case !l.IsSignificant():
		return DiameterNone
	case l.IsTotalOcclusion():
		return DiameterOcclusion
	default:
		return DiameterSignificant
	}
}

func classifyBifurcation(l domain.Lesion) BifurcationType {
	if !l.IsBifurcation {
		return BifurcationNone
	}
	if complexMedina[normalizeMedina(l.Medina)] {
		return BifurcationComplex
	}
	return BifurcationSimple
}

// normalizeMedina turns "1.1.1", "(1, 1, 1)" or "111" into "1,1,1".
func normalizeMedina(raw string) string {
	digits := make([]string, 0, 3)
	for _, r := range raw {
		if r == '0' || r == '1' {
			digits = append(digits, string(r))
		}
	}
	if len(digits) != 3 {
		return ""
	}
	return strings.Join(digits, ",")
}

func classifyLength(l domain.Lesion) LengthClass {
	switch {
	case l.LengthMM == nil:
		return LengthUnknown
	case *l.LengthMM > 20:
		return LengthLong
	default:
		return LengthShort
	}
}

// resolveLesionSegment returns the explicit segment when it exists under the
// dominance, or the canonical segment for the lesion's vessel and location.
func resolveLesionSegment(l domain.Lesion, dominance domain.Dominance) (int, error) {
	if l.SegmentID != nil {
		if _, err := catalog.WeightFor(*l.SegmentID, dominance); err != nil {
			return 0, err
		}
		return *l.SegmentID, nil
	}
	return catalog.ResolveSegment(l.Vessel, l.Location, dominance)
}
