package dataio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coronary-score-server/internal/domain"
)

// SamplePatients returns two demonstration records.
func SamplePatients() []domain.PatientRecord {
	return []domain.PatientRecord{
		{
			ID:           "P001",
			Age:          65,
			Sex:          domain.SexMale,
			Diabetes:     true,
			Hypertension: true,
			EjectionFrac: domain.Float64(55),
			Lesions: []domain.Lesion{
				{
					ID:              "L001",
					Vessel:          domain.VesselLAD,
					StenosisPercent: 75,
					Location:        domain.LocationProximal,
					LengthMM:        domain.Float64(15),
					IsCalcified:     true,
				},
				{
					ID:              "L002",
					Vessel:          domain.VesselRCA,
					StenosisPercent: 60,
					Location:        domain.LocationMid,
					LengthMM:        domain.Float64(8),
				},
			},
		},
		{
			ID:           "P002",
			Age:          58,
			Sex:          domain.SexFemale,
			EjectionFrac: domain.Float64(60),
			Lesions: []domain.Lesion{
				{
					ID:              "L003",
					Vessel:          domain.VesselLCX,
					StenosisPercent: 85,
					Location:        domain.LocationProximal,
					LengthMM:        domain.Float64(20),
					IsBifurcation:   true,
				},
			},
		},
	}
}

// WriteSample writes the sample records as JSON or as a long-layout workbook.
func WriteSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	patients := SamplePatients()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return WritePatientsWorkbook(path, patients)
	case ".json", "":
		data, err := json.MarshalIndent(patients, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sample: %w", err)
		}
		return os.WriteFile(path, data, 0644)
	default:
		return fmt.Errorf("unsupported sample format %q", ext)
	}
}
