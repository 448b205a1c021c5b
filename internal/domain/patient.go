package domain

import (
	"sort"
	"time"
)

// SignificantStenosis is the diameter reduction from which SYNTAX and Gensini
// count a lesion.
const SignificantStenosis = 50.0

// PatientRecord is one patient's clinical covariates and angiographic lesions.
// Scorers treat it as immutable.
type PatientRecord struct {
	ID              string     `json:"patient_id,omitempty"`
	Age             int        `json:"age"`
	Sex             Sex        `json:"gender"`
	Diabetes        bool       `json:"diabetes"`
	Hypertension    bool       `json:"hypertension"`
	Hyperlipidemia  bool       `json:"hyperlipidemia"`
	Smoking         bool       `json:"smoking"`
	FamilyHistory   bool       `json:"family_history"`
	CreatinineMgDL  *float64   `json:"creatinine_mg_dl,omitempty"`
	LDLCholesterol  *float64   `json:"ldl_cholesterol,omitempty"`
	EjectionFrac    *float64   `json:"ejection_fraction,omitempty"`
	Dominance       Dominance  `json:"dominance,omitempty"`
	ExaminationDate *time.Time `json:"examination_date,omitempty"`
	ExaminationType string     `json:"examination_type,omitempty"`
	Lesions         []Lesion   `json:"lesions"`
}

// Lesion is a single stenosis. The optional SYNTAX covariates default to zero
// contribution when omitted.
type Lesion struct {
	ID              string     `json:"lesion_id,omitempty"`
	Vessel          Vessel     `json:"vessel"`
	SegmentID       *int       `json:"segment_id,omitempty"`
	StenosisPercent float64    `json:"stenosis_percent"`
	Location        Location   `json:"location"`
	LengthMM        *float64   `json:"length_mm,omitempty"`
	Morphology      Morphology `json:"morphology,omitempty"`

	IsBifurcation   bool   `json:"is_bifurcation"`
	IsOstial        bool   `json:"is_ostial"`
	IsCalcified     bool   `json:"is_calcified"`
	IsTortuous      bool   `json:"is_tortuous"`
	IsCTO           bool   `json:"is_cto"`
	ThrombusPresent bool   `json:"thrombus_present"`
	IsTreated       bool   `json:"is_treated"`
	TreatmentMethod string `json:"treatment_method,omitempty"`

	// CTO covariates
	OcclusionOver3Months    bool `json:"occlusion_over_3_months,omitempty"`
	BluntStump              bool `json:"blunt_stump,omitempty"`
	BridgingCollaterals     bool `json:"bridging_collaterals,omitempty"`
	FirstSegmentInvisible   bool `json:"first_segment_invisible,omitempty"`
	SideBranchesAtOcclusion int  `json:"side_branches_at_occlusion,omitempty"`

	// Branching and diffuse disease covariates
	TrifurcationSegments int      `json:"trifurcation_diseased_segments,omitempty"`
	DiffuseSmallVessel   int      `json:"diffuse_small_vessel_segments,omitempty"`
	Medina               string   `json:"medina,omitempty"`
	BifurcationAngleDeg  *float64 `json:"bifurcation_angle_deg,omitempty"`
	NonDiagnostic        bool     `json:"non_diagnostic,omitempty"`
}

// EffectiveDominance returns the patient's dominance, defaulting to right.
func (p *PatientRecord) EffectiveDominance() Dominance {
	return p.Dominance.OrDefault()
}

// Label identifies the patient in logs and errors.
func (p *PatientRecord) Label() string {
	if p.ID == "" {
		return "<unnamed patient>"
	}
	return p.ID
}

// LesionsByVessel groups lesion indices by vessel, keeping input order.
func (p *PatientRecord) LesionsByVessel() map[Vessel][]int {
	out := make(map[Vessel][]int)
	for i, l := range p.Lesions {
		out[l.Vessel] = append(out[l.Vessel], i)
	}
	return out
}

// SignificantLesions returns the lesions at or above 50% stenosis.
func (p *PatientRecord) SignificantLesions() []Lesion {
	var out []Lesion
	for _, l := range p.Lesions {
		if l.IsSignificant() {
			out = append(out, l)
		}
	}
	return out
}

// InvolvedVessels lists vessels carrying at least one lesion, in priority order.
func (p *PatientRecord) InvolvedVessels() []Vessel {
	seen := make(map[Vessel]bool)
	for _, l := range p.Lesions {
		seen[l.Vessel] = true
	}
	out := make([]Vessel, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

// IsSignificant reports whether the lesion reaches 50% diameter reduction.
func (l Lesion) IsSignificant() bool {
	return l.StenosisPercent >= SignificantStenosis
}

// IsTotalOcclusion reports a CTO lesion in the 99-100% band.
func (l Lesion) IsTotalOcclusion() bool {
	return l.IsCTO && l.StenosisPercent >= 99
}

// Describe is a short human label such as "LAD proximal 75%".
func (l Lesion) Describe() string {
	return describeLesion(l)
}

// Float64 returns a pointer to v, for building optional covariates.
func Float64(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
