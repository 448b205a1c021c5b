// Package domain contains core business entities and types for coronary lesion
// scoring: the patient and lesion model, the categorical variants the three
// scoring standards key on, and the result records each standard produces.
//
// References:
//   - Sianos et al. (2005) The SYNTAX Score: an angiographic tool grading the
//     complexity of coronary artery disease. EuroIntervention 1(2):219-27.
//   - Gensini GG (1983) A more meaningful scoring system for determining the
//     severity of coronary heart disease. Am J Cardiol 51(3):606.
//   - Cury et al. (2022) CAD-RADS 2.0 Coronary Artery Disease Reporting and
//     Data System. J Cardiovasc Comput Tomogr 16(6):536-57.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sex represents the patient's sex as used by the clinical covariates.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Vessel identifies the coronary artery a lesion sits in.
type Vessel string

const (
	VesselLM  Vessel = "LM"  // left main
	VesselLAD Vessel = "LAD" // left anterior descending
	VesselLCX Vessel = "LCX" // left circumflex
	VesselRCA Vessel = "RCA" // right coronary artery
	VesselD   Vessel = "D"   // diagonal branches
	VesselOM  Vessel = "OM"  // obtuse marginal branches
	VesselPDA Vessel = "PDA" // posterior descending
	VesselPLV Vessel = "PLV" // posterolateral ventricular branches
)

// Location is the position of a lesion along its vessel.
type Location string

const (
	LocationProximal Location = "proximal"
	LocationMid      Location = "mid"
	LocationDistal   Location = "distal"
)

// Dominance describes which artery supplies the posterior descending and
// posterolateral territory. It changes the SYNTAX segment weight table.
type Dominance string

const (
	DominanceRight    Dominance = "right"
	DominanceLeft     Dominance = "left"
	DominanceBalanced Dominance = "balanced"
)

// Morphology is the ACC/AHA lesion type. It is carried through to reports
// but none of the three standards score it.
type Morphology string

const (
	MorphologyA  Morphology = "A"
	MorphologyB1 Morphology = "B1"
	MorphologyB2 Morphology = "B2"
	MorphologyC  Morphology = "C"
)

// Calculator names one of the three scoring standards, or all of them.
type Calculator string

const (
	CalculatorSyntax  Calculator = "syntax"
	CalculatorGensini Calculator = "gensini"
	CalculatorCadRads Calculator = "cadrads"
	CalculatorAll     Calculator = "all"
)

// SyntaxRisk is the SYNTAX score risk tertile.
type SyntaxRisk string

const (
	SyntaxRiskLow          SyntaxRisk = "low"
	SyntaxRiskIntermediate SyntaxRisk = "intermediate"
	SyntaxRiskHigh         SyntaxRisk = "high"
)

// GensiniSeverity is the severity grade derived from the Gensini total.
type GensiniSeverity string

const (
	GensiniNormal   GensiniSeverity = "normal"
	GensiniMild     GensiniSeverity = "mild"
	GensiniModerate GensiniSeverity = "moderate"
	GensiniSevere   GensiniSeverity = "severe"
	GensiniCritical GensiniSeverity = "critical"
)

// CadRadsModifier is a CAD-RADS modifier flag reported next to the grade.
type CadRadsModifier string

const (
	ModifierNonDiagnostic CadRadsModifier = "N"
	ModifierStent         CadRadsModifier = "S"
	ModifierGraft         CadRadsModifier = "G"
)

// Parse errors for categorical input
var (
	ErrInvalidSex        = errors.New("invalid sex")
	ErrInvalidVessel     = errors.New("invalid vessel")
	ErrInvalidLocation   = errors.New("invalid stenosis location")
	ErrInvalidDominance  = errors.New("invalid coronary dominance")
	ErrInvalidMorphology = errors.New("invalid lesion morphology")
	ErrInvalidCalculator = errors.New("invalid calculator")
)

// vesselPriority is the fixed tie-break order used when several vessels share
// the worst grade.
var vesselPriority = []Vessel{
	VesselLM, VesselLAD, VesselLCX, VesselRCA,
	VesselD, VesselOM, VesselPDA, VesselPLV,
}

// AllVessels returns every vessel in tie-break priority order.
func AllVessels() []Vessel {
	out := make([]Vessel, len(vesselPriority))
	copy(out, vesselPriority)
	return out
}

// IsValid reports whether s is one of the known sexes.
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale:
		return true
	default:
		return false
	}
}

func (s Sex) String() string {
	return string(s)
}

// ParseSex accepts the wire values plus common abbreviations.
func ParseSex(raw string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m", "男":
		return SexMale, nil
	case "female", "f", "女":
		return SexFemale, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSex, raw)
	}
}

// IsValid reports whether v is one of the eight scored vessels.
func (v Vessel) IsValid() bool {
	switch v {
	case VesselLM, VesselLAD, VesselLCX, VesselRCA, VesselD, VesselOM, VesselPDA, VesselPLV:
		return true
	default:
		return false
	}
}

func (v Vessel) String() string {
	return string(v)
}

// Priority returns the tie-break rank of the vessel, lower is more important.
// Unknown vessels sort last.
func (v Vessel) Priority() int {
	for i, candidate := range vesselPriority {
		if candidate == v {
			return i
		}
	}
	return len(vesselPriority)
}

// Name returns the anatomical name of the vessel.
func (v Vessel) Name() string {
	switch v {
	case VesselLM:
		return "Left main"
	case VesselLAD:
		return "Left anterior descending"
	case VesselLCX:
		return "Left circumflex"
	case VesselRCA:
		return "Right coronary artery"
	case VesselD:
		return "Diagonal"
	case VesselOM:
		return "Obtuse marginal"
	case VesselPDA:
		return "Posterior descending"
	case VesselPLV:
		return "Posterolateral ventricular"
	default:
		return "Unknown vessel"
	}
}

// ParseVessel is case-insensitive and accepts a few long-form aliases.
func ParseVessel(raw string) (Vessel, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	switch key {
	case "LM", "LMCA", "LEFT MAIN":
		return VesselLM, nil
	case "LAD":
		return VesselLAD, nil
	case "LCX", "CX":
		return VesselLCX, nil
	case "RCA":
		return VesselRCA, nil
	case "D", "DIAG", "DIAGONAL":
		return VesselD, nil
	case "OM", "OBTUSE MARGINAL":
		return VesselOM, nil
	case "PDA", "PD":
		return VesselPDA, nil
	case "PLV", "PL", "PLB":
		return VesselPLV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVessel, raw)
	}
}

// IsValid reports whether l is a known location.
func (l Location) IsValid() bool {
	switch l {
	case LocationProximal, LocationMid, LocationDistal:
		return true
	default:
		return false
	}
}

func (l Location) String() string {
	return string(l)
}

// ParseLocation accepts English and Chinese segment position words.
func ParseLocation(raw string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "proximal", "prox", "p", "近段", "近端":
		return LocationProximal, nil
	case "mid", "middle", "m", "中段":
		return LocationMid, nil
	case "distal", "dist", "d", "远段", "远端":
		return LocationDistal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLocation, raw)
	}
}

// IsValid reports whether d is a known dominance.
func (d Dominance) IsValid() bool {
	switch d {
	case DominanceRight, DominanceLeft, DominanceBalanced:
		return true
	default:
		return false
	}
}

func (d Dominance) String() string {
	return string(d)
}

// OrDefault returns d, or right dominance when d is unset.
func (d Dominance) OrDefault() Dominance {
	if d == "" {
		return DominanceRight
	}
	return d
}

// ParseDominance parses a dominance name; the empty string yields right dominance.
func ParseDominance(raw string) (Dominance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "right", "r", "右优势":
		return DominanceRight, nil
	case "left", "l", "左优势":
		return DominanceLeft, nil
	case "balanced", "co-dominant", "codominant", "均衡型":
		return DominanceBalanced, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDominance, raw)
	}
}

// IsValid reports whether m is a known ACC/AHA lesion type.
func (m Morphology) IsValid() bool {
	switch m {
	case MorphologyA, MorphologyB1, MorphologyB2, MorphologyC:
		return true
	default:
		return false
	}
}

// ParseMorphology parses an ACC/AHA lesion type; the empty string is allowed.
func ParseMorphology(raw string) (Morphology, error) {
	m := Morphology(strings.ToUpper(strings.TrimSpace(raw)))
	if m == "" || m.IsValid() {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMorphology, raw)
}

// ParseCalculator parses a calculator selector.
func ParseCalculator(raw string) (Calculator, error) {
	c := Calculator(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CalculatorSyntax, CalculatorGensini, CalculatorCadRads, CalculatorAll:
		return c, nil
	case "cad-rads", "cad_rads":
		return CalculatorCadRads, nil
	case "":
		return CalculatorAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCalculator, raw)
	}
}

// Expand returns the concrete standards selected by c.
func (c Calculator) Expand() []Calculator {
	if c == CalculatorAll {
		return []Calculator{CalculatorSyntax, CalculatorCadRads, CalculatorGensini}
	}
	return []Calculator{c}
}

func (c Calculator) String() string {
	return string(c)
}

// ClassifySyntax maps a SYNTAX score to its risk tertile. Boundary values
// belong to the lower-risk band.
func ClassifySyntax(score float64) SyntaxRisk {
	switch {
	case score <= 22:
		return SyntaxRiskLow
	case score <= 32:
		return SyntaxRiskIntermediate
	default:
		return SyntaxRiskHigh
	}
}

// ClassifyGensini maps a Gensini total to its severity grade.
func ClassifyGensini(total float64) GensiniSeverity {
	switch {
	case total <= 0:
		return GensiniNormal
	case total <= 20:
		return GensiniMild
	case total <= 40:
		return GensiniModerate
	case total <= 80:
		return GensiniSevere
	default:
		return GensiniCritical
	}
}

// LogFields returns structured logging fields for audit trails.
func (r SyntaxRisk) LogFields() map[string]any {
	return map[string]any{
		"risk_category":     string(r),
		"heart_team_needed": r != SyntaxRiskLow,
	}
}
