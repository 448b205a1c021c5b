package validation

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/domain"
)

func validPatient() *domain.PatientRecord {
	return &domain.PatientRecord{
		ID:  "P001",
		Age: 65,
		Sex: domain.SexMale,
		Lesions: []domain.Lesion{
			{Vessel: domain.VesselLAD, Location: domain.LocationProximal, StenosisPercent: 75},
			{Vessel: domain.VesselRCA, Location: domain.LocationMid, StenosisPercent: 100, IsCTO: true},
		},
	}
}

func TestValidate_ValidPatient(t *testing.T) {
	v := NewValidator(logrus.New())

	report := v.Validate(validPatient())

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.NoError(t, report.Err())
}

func TestValidate_RangeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.PatientRecord)
		field  string
	}{
		{"age above range", func(p *domain.PatientRecord) { p.Age = 151 }, "age"},
		{"missing gender", func(p *domain.PatientRecord) { p.Sex = "" }, "gender"},
		{"ejection fraction too low", func(p *domain.PatientRecord) { p.EjectionFrac = domain.Float64(5) }, "ejection_fraction"},
		{"creatinine too high", func(p *domain.PatientRecord) { p.CreatinineMgDL = domain.Float64(25) }, "creatinine_mg_dl"},
		{"stenosis over 100", func(p *domain.PatientRecord) { p.Lesions[0].StenosisPercent = 120 }, "lesions[0].stenosis_percent"},
		{"cto below 99", func(p *domain.PatientRecord) { p.Lesions[1].StenosisPercent = 90 }, "lesions[1].is_cto"},
		{"unknown vessel", func(p *domain.PatientRecord) { p.Lesions[0].Vessel = "LIMA" }, "lesions[0].vessel"},
		{"segment not under dominance", func(p *domain.PatientRecord) { p.Lesions[0].SegmentID = domain.Int(15) }, "lesions[0].segment_id"},
		{"length over 200", func(p *domain.PatientRecord) { p.Lesions[0].LengthMM = domain.Float64(250) }, "lesions[0].length_mm"},
		{"bad medina", func(p *domain.PatientRecord) { p.Lesions[0].Medina = "1,2,1" }, "lesions[0].medina"},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatient()
			tt.mutate(p)

			report := v.Validate(p)

			require.False(t, report.Valid)
			require.NotEmpty(t, report.Errors)
			assert.Equal(t, tt.field, report.Errors[0].Field)

			var pe *domain.PatientError
			require.True(t, errors.As(report.Err(), &pe))
			assert.Equal(t, "P001", pe.PatientID)
		})
	}
}

func TestCheckPatientFields(t *testing.T) {
	p := validPatient()
	assert.NoError(t, CheckPatientFields(p))

	p.Sex = ""
	err := CheckPatientFields(p)
	assert.True(t, errors.Is(err, domain.ErrMissingPatientField))

	p.Sex = domain.SexFemale
	p.Age = -1
	err = CheckPatientFields(p)
	assert.True(t, errors.Is(err, domain.ErrPatientOutOfRange))
	assert.Contains(t, err.Error(), "P001")
}

func TestConsistencyWarnings(t *testing.T) {
	p := &domain.PatientRecord{
		Age:            35,
		Sex:            domain.SexMale,
		Diabetes:       true,
		CreatinineMgDL: domain.Float64(1.8),
		EjectionFrac:   domain.Float64(35),
		Lesions: []domain.Lesion{
			{Vessel: domain.VesselLM, StenosisPercent: 80},
			{Vessel: domain.VesselLAD, Location: domain.LocationMid, StenosisPercent: 60, ThrombusPresent: true},
		},
	}

	warnings := ConsistencyWarnings(p)

	assert.Len(t, warnings, 4)
	assert.Contains(t, warnings[0], "thrombus")
}

func TestConsistencyWarnings_NoLesions(t *testing.T) {
	warnings := ConsistencyWarnings(&domain.PatientRecord{Age: 50, Sex: domain.SexFemale})

	assert.Equal(t, []string{"no lesions recorded; all scores will be zero"}, warnings)
}
