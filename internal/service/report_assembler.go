package service

import (
	"fmt"
	"strings"

	"github.com/coronary-score-server/internal/domain"
)

// ReportAssembler turns scorer results into lesion-level reports. Every
// method is a pure function of its arguments.
type ReportAssembler struct{}

// NewReportAssembler creates a report assembler
func NewReportAssembler() *ReportAssembler {
	return &ReportAssembler{}
}

var syntaxRecommendations = map[domain.SyntaxRisk]string{
	domain.SyntaxRiskLow:          "Low anatomical complexity: PCI is an appropriate revascularization strategy.",
	domain.SyntaxRiskIntermediate: "Intermediate complexity: PCI and CABG are both reasonable; discuss with the heart team.",
	domain.SyntaxRiskHigh:         "High anatomical complexity: CABG is the preferred revascularization strategy.",
}

var gensiniRecommendations = map[domain.GensiniSeverity]string{
	domain.GensiniNormal:   "No treatment required; maintain a healthy lifestyle with routine check-ups.",
	domain.GensiniMild:     "Medical therapy with active risk-factor control; review in 6-12 months.",
	domain.GensiniModerate: "Intensified medical therapy; consider functional testing; review in 3-6 months.",
	domain.GensiniSevere:   "Invasive angiography to evaluate revascularization; close follow-up.",
	domain.GensiniCritical: "Urgent invasive angiography and active revascularization.",
}

var gensiniAdvice = map[domain.GensiniSeverity]domain.GensiniAdvice{
	domain.GensiniNormal: {
		Primary:   "No specific treatment required",
		Lifestyle: "Maintain a healthy lifestyle",
		FollowUp:  "Routine health check-ups",
	},
	domain.GensiniMild: {
		Primary:   "Medical therapy with risk-factor control",
		Lifestyle: "Stop smoking, control diet and exercise moderately",
		FollowUp:  "Review in 6-12 months",
	},
	domain.GensiniModerate: {
		Primary:   "Intensified medical therapy; consider functional testing",
		Lifestyle: "Strict control of all risk factors",
		FollowUp:  "Review in 3-6 months, stress testing if needed",
	},
	domain.GensiniSevere: {
		Primary:   "Invasive angiography to evaluate revascularization",
		Lifestyle: "Comprehensive risk-factor management",
		FollowUp:  "Close follow-up guided by angiography",
	},
	domain.GensiniCritical: {
		Primary:   "Urgent invasive angiography and active revascularization",
		Lifestyle: "Full in-hospital assessment and treatment",
		FollowUp:  "Guideline follow-up after the procedure",
	},
}

var gensiniVersusSyntax = domain.ScoreComparison{
	GensiniFocus:        "Gensini reflects the anatomical severity and extent of disease",
	SyntaxDifference:    "SYNTAX weighs lesion complexity and the feasibility of PCI",
	ClinicalApplication: "Gensini suits quantitative severity grading and prognosis",
	ComplementaryUse:    "The two scores complement each other in a full assessment",
}

var cadRadsText = map[int]struct {
	description    string
	recommendation string
	followUp       string
	significance   string
}{
	0: {"No plaque or stenosis (0%)", "No further cardiac investigation", "Repeat CT in 5-10 years if risk factors are present", "No coronary atherosclerosis; very low event risk"},
	1: {"Minimal stenosis (1-24%)", "Preventive therapy and lifestyle modification", "Repeat CT in 3-5 years", "Minimal atherosclerosis; control risk factors to prevent progression"},
	2: {"Mild stenosis (25-49%)", "Preventive medical therapy and risk-factor control", "Repeat CT in 2-3 years or as symptoms dictate", "Mild stenosis, usually not ischemic; warrants active medical therapy"},
	3: {"Moderate stenosis (50-69%)", "Consider functional assessment for ischemia", "Review in 1-2 years or per functional test result", "Moderate stenosis that may cause ischemia; functional evaluation advised"},
	4: {"Severe stenosis (70-99%) or left main disease", "Invasive angiography; consider revascularization", "Guideline follow-up after revascularization", "Severe stenosis, likely ischemic; revascularization usually indicated"},
	5: {"Total occlusion (100%)", "Invasive angiography; consider revascularization if viable myocardium", "Guideline follow-up after revascularization", "Total occlusion; revascularize if the territory is viable"},
}

// SyntaxReport assembles the SYNTAX report.
func (a *ReportAssembler) SyntaxReport(p *domain.PatientRecord, r *domain.SyntaxResult) *domain.SyntaxReport {
	details := make([]domain.LesionDetail, 0, len(r.Lesions))
	for _, ls := range r.Lesions {
		d := lesionDetail(p, ls.LesionIndex)
		d.Points = ls.Points
		d.Breakdown = syntaxBreakdown(ls)
		details = append(details, d)
	}
	return &domain.SyntaxReport{
		Result:         r,
		LesionDetails:  details,
		Recommendation: syntaxRecommendations[r.RiskCategory],
		Interpretation: fmt.Sprintf("SYNTAX %.1f (%s risk), clinical %.0f, SYNTAX II %.1f",
			r.TotalScore, r.RiskCategory, r.ClinicalScore, r.SyntaxIIScore),
	}
}

// GensiniReport assembles the Gensini report with risk and prognosis.
func (a *ReportAssembler) GensiniReport(p *domain.PatientRecord, r *domain.GensiniResult) *domain.GensiniReport {
	details := make([]domain.LesionDetail, 0, len(r.Lesions))
	for _, ls := range r.Lesions {
		d := lesionDetail(p, ls.LesionIndex)
		d.Points = ls.Contribution
		d.Breakdown = fmt.Sprintf("index %g x multiplier %g", ls.SeverityIndex, ls.Multiplier)
		details = append(details, d)
	}
	return &domain.GensiniReport{
		Result:               r,
		LesionDetails:        details,
		Recommendation:       gensiniRecommendations[r.Severity],
		Advice:               gensiniAdvice[r.Severity],
		RiskAssessment:       gensiniRisk(p, r.TotalScore),
		Prognosis:            gensiniPrognosis(p, r.TotalScore),
		ComparisonWithSyntax: gensiniVersusSyntax,
	}
}

// CadRadsReport assembles the CAD-RADS report.
func (a *ReportAssembler) CadRadsReport(p *domain.PatientRecord, r *domain.CadRadsResult) *domain.CadRadsReport {
	details := make([]domain.LesionDetail, 0, len(r.Lesions))
	for _, lg := range r.Lesions {
		d := lesionDetail(p, lg.LesionIndex)
		d.Points = float64(lg.Grade)
		d.Breakdown = fmt.Sprintf("grade %d: %s", lg.Grade, cadRadsText[lg.Grade].description)
		details = append(details, d)
	}
	text := cadRadsText[r.OverallGrade]
	return &domain.CadRadsReport{
		Result:               r,
		LesionDetails:        details,
		Description:          text.description,
		Recommendation:       text.recommendation,
		FollowUp:             text.followUp,
		ClinicalSignificance: text.significance,
		RiskLevel:            cadRadsRiskLevel(p, r.OverallGrade),
		QualityMeasures:      imagingQuality(r.OverallGrade),
	}
}

func lesionDetail(p *domain.PatientRecord, index int) domain.LesionDetail {
	l := p.Lesions[index]
	return domain.LesionDetail{
		Index:       index,
		LesionID:    l.ID,
		Vessel:      l.Vessel,
		Location:    l.Location,
		Stenosis:    l.StenosisPercent,
		LengthMM:    l.LengthMM,
		Description: l.Describe(),
		Attributes:  lesionAttributes(l),
	}
}

func lesionAttributes(l domain.Lesion) []string {
	var attrs []string
	add := func(set bool, name string) {
		if set {
			attrs = append(attrs, name)
		}
	}
	add(l.IsCTO, "cto")
	add(l.IsBifurcation, "bifurcation")
	add(l.IsOstial, "ostial")
	add(l.IsCalcified, "calcified")
	add(l.IsTortuous, "tortuous")
	add(l.ThrombusPresent, "thrombus")
	add(l.IsTreated, "treated")
	if l.Morphology != "" {
		attrs = append(attrs, "type "+string(l.Morphology))
	}
	return attrs
}

func syntaxBreakdown(ls domain.SyntaxLesionScore) string {
	if !ls.Scored {
		return "not scored"
	}
	parts := make([]string, 0, len(ls.Factors))
	for _, f := range ls.Factors {
		parts = append(parts, fmt.Sprintf("%s %g", f.Name, f.Points))
	}
	return fmt.Sprintf("segment %d (weight %g x %g): %s", ls.SegmentID, ls.SegmentWeight, ls.Multiplier, strings.Join(parts, ", "))
}

func gensiniRisk(p *domain.PatientRecord, total float64) domain.GensiniRiskAssessment {
	level := "low"
	switch {
	case total > 80:
		level = "very_high"
	case total > 40:
		level = "high"
	case total > 20:
		level = "moderate"
	}

	var modifiers []string
	if p.Age >= 75 {
		modifiers = append(modifiers, "advanced age")
	}
	if p.Diabetes {
		modifiers = append(modifiers, "diabetes")
	}
	if p.EjectionFrac != nil && *p.EjectionFrac < 50 {
		modifiers = append(modifiers, "reduced ejection fraction")
	}
	if p.CreatinineMgDL != nil && *p.CreatinineMgDL > 2.0 {
		modifiers = append(modifiers, "renal dysfunction")
	}

	base := 20
	switch {
	case total <= 20:
		base = 2
	case total <= 40:
		base = 5
	case total <= 80:
		base = 10
	}
	adjusted := base + 2*len(modifiers)

	var band string
	switch {
	case adjusted < 5:
		band = "low (<5%/year)"
	case adjusted < 10:
		band = "intermediate (5-10%/year)"
	case adjusted < 20:
		band = "high (10-20%/year)"
	default:
		band = "very high (>20%/year)"
	}

	return domain.GensiniRiskAssessment{RiskLevel: level, AnnualEventRisk: band, RiskModifiers: modifiers}
}

func gensiniPrognosis(p *domain.PatientRecord, total float64) domain.GensiniPrognosis {
	var overall string
	survival := 95
	switch {
	case total <= 20:
		overall = "good"
	case total <= 40:
		overall = "relatively good"
		survival -= 5
	case total <= 80:
		overall = "guarded"
		survival -= 10
	default:
		overall = "poor; active intervention required"
		survival -= 15
	}

	var factors []string
	if p.Age >= 80 {
		factors = append(factors, "advanced age")
	}
	if p.Diabetes {
		factors = append(factors, "diabetes")
	}
	if p.EjectionFrac != nil && *p.EjectionFrac < 40 {
		factors = append(factors, "left ventricular dysfunction")
	}
	survival = max(survival-5*len(factors), 50)

	return domain.GensiniPrognosis{
		Overall:           overall,
		FiveYearSurvival:  fmt.Sprintf("about %d%%", survival),
		PrognosticFactors: factors,
	}
}

func imagingQuality(grade int) domain.ImagingQuality {
	switch {
	case grade >= 3:
		return domain.ImagingQuality{
			Requirement:       "high",
			Recommendation:    "High-quality CT; confirm with invasive angiography if needed",
			AdditionalImaging: "Consider functional testing for myocardial ischemia",
		}
	case grade >= 1:
		return domain.ImagingQuality{
			Requirement:       "standard",
			Recommendation:    "Standard CT quality is sufficient for assessment",
			AdditionalImaging: "Further testing depends on clinical symptoms",
		}
	default:
		return domain.ImagingQuality{
			Requirement:       "standard",
			Recommendation:    "Standard CT quality is sufficient",
			AdditionalImaging: "No additional imaging required",
		}
	}
}

// cadRadsRiskLevel starts from the grade and steps up for clinical risk
// factors.
func cadRadsRiskLevel(p *domain.PatientRecord, grade int) string {
	level := "low"
	switch {
	case grade >= 4:
		level = "high"
	case grade == 3:
		level = "intermediate"
	}

	factors := 0
	for _, present := range []bool{p.Diabetes, p.Hypertension, p.Age >= 65, p.Sex == domain.SexMale} {
		if present {
			factors++
		}
	}

	switch {
	case level == "low" && factors >= 3:
		level = "intermediate"
	case level == "intermediate" && factors >= 2:
		level = "high"
	}
	return level
}
