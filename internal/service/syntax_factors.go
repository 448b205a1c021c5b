package service

import (
	"math"

	"github.com/coronary-score-server/internal/domain"
)

// factorInput is what every SYNTAX factor sees for one lesion.
type factorInput struct {
	lesion  domain.Lesion
	profile LesionProfile
	weight  float64
}

// syntaxFactor is one additive term of a lesion's SYNTAX points.
type syntaxFactor struct {
	name  string
	apply func(in factorInput) float64
}

// syntaxPipeline is applied in order; only the first term is multiplicative.
var syntaxPipeline = []syntaxFactor{
	{name: "segment_weight_x_diameter", apply: baseFactor},
	{name: "total_occlusion", apply: ctoFactor},
	{name: "bifurcation", apply: bifurcationFactor},
	{name: "trifurcation", apply: trifurcationFactor},
	{name: "aorto_ostial", apply: ostialFactor},
	{name: "severe_tortuosity", apply: tortuosityFactor},
	{name: "length_over_20mm", apply: lengthFactor},
	{name: "heavy_calcification", apply: calcificationFactor},
	{name: "thrombus", apply: thrombusFactor},
	{name: "diffuse_small_vessel", apply: diffuseFactor},
}

// diameterMultiplier is 5 for a total occlusion and 2 for any other
// significant lesion.
func diameterMultiplier(c DiameterClass) float64 {
	switch c {
	case DiameterOcclusion:
		return 5
	case DiameterSignificant:
		return 2
	default:
		return 0
	}
}

func baseFactor(in factorInput) float64 {
	return in.weight * diameterMultiplier(in.profile.Diameter)
}

func ctoFactor(in factorInput) float64 {
	if in.profile.Diameter != DiameterOcclusion {
		return 0
	}
	l := in.lesion
	points := float64(max(l.SideBranchesAtOcclusion, 0))
	for _, present := range []bool{l.OcclusionOver3Months, l.BluntStump, l.BridgingCollaterals, l.FirstSegmentInvisible} {
		if present {
			points++
		}
	}
	return points
}

func bifurcationFactor(in factorInput) float64 {
	if in.lesion.TrifurcationSegments > 0 {
		return 0
	}
	var points float64
	switch in.profile.Bifurcation {
	case BifurcationSimple:
		points = 1
	case BifurcationComplex:
		points = 2
	default:
		return 0
	}
	if a := in.lesion.BifurcationAngleDeg; a != nil && *a >= 70 {
		points++
	}
	return points
}

func trifurcationFactor(in factorInput) float64 {
	n := min(in.lesion.TrifurcationSegments, 4)
	if n <= 0 {
		return 0
	}
	return float64(2 + n)
}

func ostialFactor(in factorInput) float64 {
	return flag(in.lesion.IsOstial, 1)
}

func tortuosityFactor(in factorInput) float64 {
	return flag(in.lesion.IsTortuous, 2)
}

func lengthFactor(in factorInput) float64 {
	if in.profile.Length != LengthLong {
		return 0
	}
	return math.Ceil((*in.lesion.LengthMM - 20) / 10)
}

func calcificationFactor(in factorInput) float64 {
	return flag(in.lesion.IsCalcified, 2)
}

func thrombusFactor(in factorInput) float64 {
	return flag(in.lesion.ThrombusPresent, 1)
}

func diffuseFactor(in factorInput) float64 {
	return float64(max(in.lesion.DiffuseSmallVessel, 0))
}

func flag(set bool, points float64) float64 {
	if set {
		return points
	}
	return 0
}

// round rounds half away from zero to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
