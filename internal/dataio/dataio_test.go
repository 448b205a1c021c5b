package dataio

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/domain"
)

func testImporter() *Importer {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewImporter(logger)
}

func TestNormalizeStenosis(t *testing.T) {
	tests := []struct {
		cell string
		want float64
		ok   bool
	}{
		{"75", 75, true},
		{"75%", 75, true},
		{" 90 ％ ", 90, true},
		{"30-65%", 65, true},
		{"50~70", 70, true},
		{"约80%狭窄伴钙化", 80, true},
		{"轻度", 50, true},
		{"中度狭窄", 70, true},
		{"重度", 90, true},
		{"轻中度", 60, true},
		{"中重度", 80, true},
		{"次全闭塞", 95, true},
		{"完全闭塞", 100, true},
		{"Severe", 90, true},
		{"occluded", 100, true},
		{"CTO", 100, true},
		{"无狭窄", 0, false},
		{"未见明显狭窄", 0, false},
		{"正常", 0, false},
		{"normal", 0, false},
		{"近段正常，远段70%", 70, true},
		{"近段正常，远段重度狭窄", 90, true},
		{"proximal normal, distal 60-80%", 80, true},
		{"", 0, false},
		{"-", 0, false},
		{"0", 0, false},
		{"see report", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, ok := NormalizeStenosis(tt.cell)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentHeader(t *testing.T) {
	tests := []struct {
		header   string
		vessel   domain.Vessel
		location domain.Location
	}{
		{"LM", domain.VesselLM, domain.LocationProximal},
		{"LAD近段", domain.VesselLAD, domain.LocationProximal},
		{"左冠-LAD中段", domain.VesselLAD, domain.LocationMid},
		{"LAD_proximal", domain.VesselLAD, domain.LocationProximal},
		{"Lcx Dist", domain.VesselLCX, domain.LocationDistal},
		{"右冠中段", domain.VesselRCA, domain.LocationMid},
		{"D2", domain.VesselD, domain.LocationDistal},
		{"OM1", domain.VesselOM, domain.LocationProximal},
		{"PDA", domain.VesselPDA, domain.LocationDistal},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			v, loc, ok := SegmentHeader(tt.header)
			require.True(t, ok)
			assert.Equal(t, tt.vessel, v)
			assert.Equal(t, tt.location, loc)
		})
	}

	_, _, ok := SegmentHeader("age")
	assert.False(t, ok)
}

func TestParseCSV_Long(t *testing.T) {
	input := `patient_id,age,gender,diabetes,vessel,location,stenosis_percent,is_calcified,segment_id
P1,65,male,yes,LAD,proximal,75,yes,
P1,65,male,yes,RCA,mid,60%,no,
P2,58,女,0,,,,,
P3,70,1,,LCX,,90,,13
`
	patients, err := ParseCSV("long.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, patients, 3)

	p1 := patients[0]
	assert.Equal(t, "P1", p1.ID)
	assert.Equal(t, 65, p1.Age)
	assert.Equal(t, domain.SexMale, p1.Sex)
	assert.True(t, p1.Diabetes)
	require.Len(t, p1.Lesions, 2)
	assert.Equal(t, domain.VesselLAD, p1.Lesions[0].Vessel)
	assert.True(t, p1.Lesions[0].IsCalcified)
	assert.Equal(t, 60.0, p1.Lesions[1].StenosisPercent)
	assert.False(t, p1.Lesions[1].IsCalcified)

	assert.Equal(t, domain.SexFemale, patients[1].Sex)
	assert.Empty(t, patients[1].Lesions)

	require.Len(t, patients[2].Lesions, 1)
	require.NotNil(t, patients[2].Lesions[0].SegmentID)
	assert.Equal(t, 13, *patients[2].Lesions[0].SegmentID)
	assert.Equal(t, domain.SexMale, patients[2].Sex)
}

func TestParseCSV_Wide(t *testing.T) {
	input := "\ufeffpatient_id,年龄,性别,LM,LAD近段,LAD中段,RCA中段,OM1\n" +
		"W1,66,男性,无狭窄,75%,30-65%,轻度,\n" +
		"W2,52,女,,,,,完全闭塞\n" +
		"W3,70,男,,,近段正常，远段70%,,\n"

	patients, err := ParseCSV("wide.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, patients, 3)

	w1 := patients[0]
	assert.Equal(t, "W1", w1.ID)
	assert.Equal(t, domain.SexMale, w1.Sex)
	require.Len(t, w1.Lesions, 3)
	assert.Equal(t, domain.VesselLAD, w1.Lesions[0].Vessel)
	assert.Equal(t, domain.LocationProximal, w1.Lesions[0].Location)
	assert.Equal(t, 75.0, w1.Lesions[0].StenosisPercent)
	assert.Equal(t, 65.0, w1.Lesions[1].StenosisPercent)
	assert.Equal(t, domain.VesselRCA, w1.Lesions[2].Vessel)
	assert.Equal(t, 50.0, w1.Lesions[2].StenosisPercent)
	assert.Equal(t, "W1-LAD近段", w1.Lesions[0].ID)

	require.Len(t, patients[1].Lesions, 1)
	assert.Equal(t, domain.VesselOM, patients[1].Lesions[0].Vessel)
	assert.Equal(t, 100.0, patients[1].Lesions[0].StenosisPercent)

	require.Len(t, patients[2].Lesions, 1)
	assert.Equal(t, domain.LocationMid, patients[2].Lesions[0].Location)
	assert.Equal(t, 70.0, patients[2].Lesions[0].StenosisPercent)
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV("missing.csv", strings.NewReader("patient_id,age,gender,vessel,stenosis_percent\nP1,60,,LAD,70\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPatientField)

	var ierr *domain.ImportError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 2, ierr.Row)
	assert.Equal(t, "missing.csv", ierr.File)

	_, err = ParseCSV("vessel.csv", strings.NewReader("patient_id,age,gender,vessel,stenosis_percent\nP1,60,male,XYZ,70\n"))
	assert.Error(t, err)

	_, err = ParseCSV("empty.csv", strings.NewReader("patient_id,age,gender\n"))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParseJSON(t *testing.T) {
	single := `{"patient_id":"J1","age":61,"gender":"男","dominance":"left",
		"examination_date":"2024-01-15",
		"lesions":[{"vessel":"lmca","location":"prox","stenosis_percent":55}]}`

	patients, err := ParseJSON("single.json", []byte(single))
	require.NoError(t, err)
	require.Len(t, patients, 1)

	p := patients[0]
	assert.Equal(t, domain.SexMale, p.Sex)
	assert.Equal(t, domain.DominanceLeft, p.Dominance)
	require.NotNil(t, p.ExaminationDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), p.ExaminationDate.UTC())
	require.Len(t, p.Lesions, 1)
	assert.Equal(t, domain.VesselLM, p.Lesions[0].Vessel)
	assert.Equal(t, domain.LocationProximal, p.Lesions[0].Location)

	array := `[{"patient_id":"A","age":50,"gender":"female","lesions":[]},
		{"patient_id":"B","age":50,"lesions":[]}]`
	_, err = ParseJSON("array.json", []byte(array))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPatientField)

	var ierr *domain.ImportError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 2, ierr.Row)

	_, err = ParseJSON("blank.json", []byte("  "))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestImporter_UnsupportedAndMissing(t *testing.T) {
	im := testImporter()

	_, err := im.ImportFile("records.txt")
	var ierr *domain.ImportError
	assert.True(t, errors.As(err, &ierr))

	_, err = im.ImportFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.xlsx")
	require.NoError(t, WriteSample(path))

	patients, err := testImporter().ImportFile(path)
	require.NoError(t, err)
	require.Len(t, patients, 2)

	p1 := patients[0]
	assert.Equal(t, "P001", p1.ID)
	assert.Equal(t, 65, p1.Age)
	assert.True(t, p1.Diabetes)
	require.NotNil(t, p1.EjectionFrac)
	assert.Equal(t, 55.0, *p1.EjectionFrac)
	require.Len(t, p1.Lesions, 2)
	assert.Equal(t, "L001", p1.Lesions[0].ID)
	assert.True(t, p1.Lesions[0].IsCalcified)
	require.NotNil(t, p1.Lesions[0].LengthMM)
	assert.Equal(t, 15.0, *p1.Lesions[0].LengthMM)

	require.Len(t, patients[1].Lesions, 1)
	assert.True(t, patients[1].Lesions[0].IsBifurcation)
}

func TestWriteSampleJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.json")
	require.NoError(t, WriteSample(path))

	patients, err := testImporter().ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, SamplePatients()[1].ID, patients[1].ID)
	assert.Equal(t, 85.0, patients[1].Lesions[0].StenosisPercent)
}

func sampleItems() []domain.BatchItem {
	return []domain.BatchItem{
		{
			Index:     0,
			PatientID: "P001",
			Bundle: &domain.ScoreBundle{
				PatientID: "P001",
				Gensini: &domain.GensiniReport{Result: &domain.GensiniResult{
					TotalScore: 12,
					Severity:   domain.GensiniMild,
					Warnings:   []domain.Warning{{LesionIndex: 1, Message: "segment not applicable"}},
				}},
				CadRads: &domain.CadRadsReport{Result: &domain.CadRadsResult{OverallGrade: 4, Label: "CAD-RADS 4A"}},
			},
		},
		{Index: 1, PatientID: "P002", Err: domain.ErrMissingPatientField},
	}
}

func TestSummarize(t *testing.T) {
	rows := Summarize(sampleItems())
	require.Len(t, rows, 2)

	assert.Equal(t, "12.0", rows[0].GensiniScore)
	assert.Equal(t, "mild", rows[0].GensiniSeverity)
	assert.Equal(t, "CAD-RADS 4A", rows[0].CadRads)
	assert.Empty(t, rows[0].SyntaxScore)
	assert.Equal(t, 1, rows[0].Warnings)

	assert.Contains(t, rows[1].Error, "missing")
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, sampleItems()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(summaryColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "P001,,,12.0,mild,CAD-RADS 4A,1"))
}

func TestExportResults(t *testing.T) {
	dir := t.TempDir()

	written, err := ExportResults(filepath.Join(dir, "out", "results.xlsx"), sampleItems())
	require.NoError(t, err)
	require.Len(t, written, 2)
	for _, path := range written {
		assert.FileExists(t, path)
	}

	data, err := os.ReadFile(written[1])
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "P002", decoded[1]["patient_id"])
	assert.NotEmpty(t, decoded[1]["error"])

	_, err = ExportResults(filepath.Join(dir, "results.pdf"), sampleItems())
	assert.Error(t, err)
}
