package domain

import (
	"errors"
	"testing"
)

func TestClassifySyntaxBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  SyntaxRisk
	}{
		{0, SyntaxRiskLow},
		{22.0, SyntaxRiskLow},
		{22.1, SyntaxRiskIntermediate},
		{32.0, SyntaxRiskIntermediate},
		{32.5, SyntaxRiskHigh},
		{33.0, SyntaxRiskHigh},
	}

	for _, tt := range tests {
		if got := ClassifySyntax(tt.score); got != tt.want {
			t.Errorf("ClassifySyntax(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestClassifyGensini(t *testing.T) {
	tests := []struct {
		total float64
		want  GensiniSeverity
	}{
		{0, GensiniNormal},
		{0.5, GensiniMild},
		{20, GensiniMild},
		{21, GensiniModerate},
		{40, GensiniModerate},
		{41, GensiniSevere},
		{80, GensiniSevere},
		{80.5, GensiniCritical},
	}

	for _, tt := range tests {
		if got := ClassifyGensini(tt.total); got != tt.want {
			t.Errorf("ClassifyGensini(%v) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestParseVessel(t *testing.T) {
	tests := []struct {
		raw     string
		want    Vessel
		wantErr bool
	}{
		{"LAD", VesselLAD, false},
		{" lcx ", VesselLCX, false},
		{"Left Main", VesselLM, false},
		{"pl", VesselPLV, false},
		{"LIMA", "", true},
	}

	for _, tt := range tests {
		got, err := ParseVessel(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidVessel) {
				t.Errorf("ParseVessel(%q) expected ErrInvalidVessel, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVessel(%q) = %s, %v; want %s", tt.raw, got, err, tt.want)
		}
	}
}

func TestParseLocationAcceptsChinese(t *testing.T) {
	for raw, want := range map[string]Location{
		"近段":       LocationProximal,
		"中段":       LocationMid,
		"远段":       LocationDistal,
		"Proximal": LocationProximal,
	} {
		got, err := ParseLocation(raw)
		if err != nil || got != want {
			t.Errorf("ParseLocation(%q) = %s, %v; want %s", raw, got, err, want)
		}
	}
}

func TestDominanceDefaultsToRight(t *testing.T) {
	var d Dominance
	if d.OrDefault() != DominanceRight {
		t.Errorf("Expected empty dominance to default to right, got %s", d.OrDefault())
	}

	parsed, err := ParseDominance("")
	if err != nil || parsed != DominanceRight {
		t.Errorf("ParseDominance(\"\") = %s, %v", parsed, err)
	}

	if _, err := ParseDominance("mixed"); !errors.Is(err, ErrInvalidDominance) {
		t.Errorf("Expected ErrInvalidDominance, got %v", err)
	}
}

func TestVesselPriorityOrder(t *testing.T) {
	vessels := AllVessels()
	for i := 1; i < len(vessels); i++ {
		if vessels[i-1].Priority() >= vessels[i].Priority() {
			t.Errorf("Vessel %s should outrank %s", vessels[i-1], vessels[i])
		}
	}
	if Vessel("LIMA").Priority() != len(vessels) {
		t.Errorf("Unknown vessels should sort last")
	}
}

func TestCalculatorExpand(t *testing.T) {
	all, err := ParseCalculator("all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Expand()) != 3 {
		t.Errorf("Expected all to expand to three standards, got %v", all.Expand())
	}

	cad, err := ParseCalculator("CAD-RADS")
	if err != nil || cad != CalculatorCadRads {
		t.Errorf("ParseCalculator(CAD-RADS) = %s, %v", cad, err)
	}
}

func TestLesionHelpers(t *testing.T) {
	l := Lesion{Vessel: VesselLAD, Location: LocationProximal, StenosisPercent: 50}
	if !l.IsSignificant() {
		t.Errorf("50%% stenosis should be significant")
	}
	if l.IsTotalOcclusion() {
		t.Errorf("non-CTO lesion should not be a total occlusion")
	}
	if l.Describe() != "LAD proximal 50%" {
		t.Errorf("Unexpected description %q", l.Describe())
	}

	p := PatientRecord{Lesions: []Lesion{
		{Vessel: VesselRCA, StenosisPercent: 30},
		l,
		{Vessel: VesselLM, StenosisPercent: 60},
	}}
	if got := len(p.SignificantLesions()); got != 2 {
		t.Errorf("Expected 2 significant lesions, got %d", got)
	}
	involved := p.InvolvedVessels()
	if len(involved) != 3 || involved[0] != VesselLM || involved[2] != VesselRCA {
		t.Errorf("Unexpected involved vessel order %v", involved)
	}
	if p.Label() != "<unnamed patient>" {
		t.Errorf("Unexpected label %q", p.Label())
	}
}
