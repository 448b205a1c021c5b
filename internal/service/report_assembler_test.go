package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/domain"
)

func TestReportAssembler_SyntaxReport(t *testing.T) {
	l := lesion(domain.VesselLAD, domain.LocationProximal, 80)
	l.IsCalcified = true
	l.Morphology = domain.MorphologyB2
	p := patientWith(l, lesion(domain.VesselRCA, domain.LocationMid, 20))

	report := NewReportAssembler().SyntaxReport(p, NewSyntaxScorer().Score(p))
	require.Len(t, report.LesionDetails, 2)

	first := report.LesionDetails[0]
	assert.Equal(t, 9.0, first.Points)
	assert.Contains(t, first.Attributes, "calcified")
	assert.Contains(t, first.Attributes, "type B2")
	assert.Contains(t, first.Breakdown, "segment 6")
	assert.Contains(t, first.Breakdown, "heavy_calcification 2")

	assert.Equal(t, "not scored", report.LesionDetails[1].Breakdown)
	assert.Equal(t, syntaxRecommendations[domain.SyntaxRiskLow], report.Recommendation)
	assert.Contains(t, report.Interpretation, "SYNTAX 9.0")
}

func TestReportAssembler_GensiniReport(t *testing.T) {
	p := patientWith(
		lesion(domain.VesselLM, domain.LocationProximal, 90),
		lesion(domain.VesselLAD, domain.LocationProximal, 99),
	)
	p.Age = 81
	p.Diabetes = true

	report := NewReportAssembler().GensiniReport(p, NewGensiniScorer().Score(p))
	assert.Equal(t, 80.0, report.Result.TotalScore) // 8 x 5 + 16 x 2.5
	assert.Equal(t, domain.GensiniSevere, report.Result.Severity)
	assert.Equal(t, "high", report.RiskAssessment.RiskLevel)
	assert.Equal(t, []string{"advanced age", "diabetes"}, report.RiskAssessment.RiskModifiers)
	assert.Equal(t, "high (10-20%/year)", report.RiskAssessment.AnnualEventRisk)
	assert.Equal(t, "guarded", report.Prognosis.Overall)
	assert.Equal(t, "about 75%", report.Prognosis.FiveYearSurvival)
	assert.Equal(t, "index 8 x multiplier 5", report.LesionDetails[0].Breakdown)
	assert.Equal(t, "Invasive angiography to evaluate revascularization", report.Advice.Primary)
	assert.Equal(t, "Comprehensive risk-factor management", report.Advice.Lifestyle)
	assert.Equal(t, "Close follow-up guided by angiography", report.Advice.FollowUp)
	assert.Equal(t, gensiniVersusSyntax, report.ComparisonWithSyntax)
}

func TestReportAssembler_GensiniAdviceCoversEveryBand(t *testing.T) {
	for _, sev := range []domain.GensiniSeverity{
		domain.GensiniNormal, domain.GensiniMild, domain.GensiniModerate, domain.GensiniSevere, domain.GensiniCritical,
	} {
		advice, ok := gensiniAdvice[sev]
		require.True(t, ok, sev)
		assert.NotEmpty(t, advice.Primary, sev)
		assert.NotEmpty(t, advice.Lifestyle, sev)
		assert.NotEmpty(t, advice.FollowUp, sev)
	}

	report := NewReportAssembler().GensiniReport(patientWith(), NewGensiniScorer().Score(patientWith()))
	assert.Equal(t, domain.GensiniNormal, report.Result.Severity)
	assert.Equal(t, "No specific treatment required", report.Advice.Primary)
	assert.NotEmpty(t, report.ComparisonWithSyntax.ComplementaryUse)
}

func TestReportAssembler_CadRadsReport(t *testing.T) {
	p := patientWith(lesion(domain.VesselRCA, domain.LocationMid, 100))
	p.Diabetes = true
	p.Hypertension = true

	report := NewReportAssembler().CadRadsReport(p, NewCadRadsScorer().Score(p))
	assert.Equal(t, 5, report.Result.OverallGrade)
	assert.Equal(t, cadRadsText[5].description, report.Description)
	assert.NotEmpty(t, report.FollowUp)
	assert.NotEmpty(t, report.ClinicalSignificance)
	assert.Equal(t, "high", report.RiskLevel)
	assert.Contains(t, report.LesionDetails[0].Breakdown, "grade 5")
	assert.Equal(t, "high", report.QualityMeasures.Requirement)
}

func TestImagingQuality(t *testing.T) {
	tests := []struct {
		grade       int
		requirement string
		additional  string
	}{
		{0, "standard", "No additional imaging required"},
		{1, "standard", "Further testing depends on clinical symptoms"},
		{2, "standard", "Further testing depends on clinical symptoms"},
		{3, "high", "Consider functional testing for myocardial ischemia"},
		{5, "high", "Consider functional testing for myocardial ischemia"},
	}
	for _, tt := range tests {
		q := imagingQuality(tt.grade)
		assert.Equal(t, tt.requirement, q.Requirement, "grade %d", tt.grade)
		assert.Equal(t, tt.additional, q.AdditionalImaging, "grade %d", tt.grade)
		assert.NotEmpty(t, q.Recommendation, "grade %d", tt.grade)
	}
}

func TestCadRadsRiskLevel(t *testing.T) {
	tests := []struct {
		name  string
		grade int
		setup func(p *domain.PatientRecord)
		want  string
	}{
		{"low grade, few factors", 1, func(p *domain.PatientRecord) { p.Sex = domain.SexFemale; p.Age = 50 }, "low"},
		{"low grade, many factors", 2, func(p *domain.PatientRecord) { p.Diabetes = true; p.Age = 70 }, "intermediate"},
		{"moderate grade, two factors", 3, func(p *domain.PatientRecord) { p.Age = 50; p.Diabetes = true }, "high"},
		{"moderate grade, one factor", 3, func(p *domain.PatientRecord) { p.Age = 50 }, "intermediate"},
		{"severe grade", 4, func(p *domain.PatientRecord) {}, "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patientWith()
			tt.setup(p)
			assert.Equal(t, tt.want, cadRadsRiskLevel(p, tt.grade))
		})
	}
}
