package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coronary-score-server/internal/domain"
)

func TestWeightFor(t *testing.T) {
	tests := []struct {
		name      string
		segment   int
		dominance domain.Dominance
		want      float64
	}{
		{"left main right dominance", 5, domain.DominanceRight, 5},
		{"left main left dominance", 5, domain.DominanceLeft, 6},
		{"proximal LAD", 6, domain.DominanceRight, 3.5},
		{"mid LAD", 7, domain.DominanceRight, 2.5},
		{"proximal LCX left dominance", 11, domain.DominanceLeft, 2.5},
		{"RCA under left dominance", 2, domain.DominanceLeft, 0},
		{"balanced uses right column", 11, domain.DominanceBalanced, 1.5},
		{"unset dominance uses right column", 16, "", 0.5},
		{"OM1 label 12a", 17, domain.DominanceRight, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := WeightFor(tt.segment, tt.dominance)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w)
		})
	}
}

func TestWeightFor_LookupErrors(t *testing.T) {
	_, err := WeightFor(42, domain.DominanceRight)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownSegment))

	var lookup *domain.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, 42, lookup.SegmentID)

	_, err = WeightFor(15, domain.DominanceRight)
	assert.True(t, errors.Is(err, domain.ErrSegmentNotApplicable))

	_, err = WeightFor(4, domain.DominanceLeft)
	assert.True(t, errors.Is(err, domain.ErrSegmentNotApplicable))
}

func TestResolveSegment(t *testing.T) {
	tests := []struct {
		vessel    domain.Vessel
		location  domain.Location
		dominance domain.Dominance
		want      int
	}{
		{domain.VesselLM, domain.LocationMid, domain.DominanceRight, 5},
		{domain.VesselLAD, domain.LocationProximal, domain.DominanceRight, 6},
		{domain.VesselLAD, domain.LocationMid, domain.DominanceRight, 7},
		{domain.VesselLAD, domain.LocationDistal, domain.DominanceRight, 8},
		{domain.VesselD, domain.LocationMid, domain.DominanceRight, 9},
		{domain.VesselD, domain.LocationDistal, domain.DominanceRight, 10},
		{domain.VesselLCX, domain.LocationMid, domain.DominanceRight, 13},
		{domain.VesselOM, domain.LocationDistal, domain.DominanceRight, 18},
		{domain.VesselRCA, domain.LocationDistal, domain.DominanceRight, 3},
		{domain.VesselPDA, domain.LocationDistal, domain.DominanceRight, 4},
		{domain.VesselPDA, domain.LocationDistal, domain.DominanceLeft, 15},
		{domain.VesselPLV, domain.LocationMid, domain.DominanceBalanced, 16},
		{domain.VesselPLV, domain.LocationMid, domain.DominanceLeft, 14},
	}

	for _, tt := range tests {
		got, err := ResolveSegment(tt.vessel, tt.location, tt.dominance)
		require.NoError(t, err, "%s %s", tt.vessel, tt.location)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.vessel, tt.location, tt.dominance)
	}
}

func TestResolveSegment_ProximalAndMidLADDiffer(t *testing.T) {
	prox, err := ResolveSegment(domain.VesselLAD, domain.LocationProximal, "")
	require.NoError(t, err)
	mid, err := ResolveSegment(domain.VesselLAD, domain.LocationMid, "")
	require.NoError(t, err)

	wp, _ := WeightFor(prox, "")
	wm, _ := WeightFor(mid, "")
	assert.NotEqual(t, wp, wm)
}

func TestResolveSegment_Unresolvable(t *testing.T) {
	_, err := ResolveSegment(domain.VesselLAD, "", domain.DominanceRight)
	assert.True(t, errors.Is(err, domain.ErrUnresolvedSegment))

	_, err = ResolveSegment("LIMA", domain.LocationProximal, domain.DominanceRight)
	assert.True(t, errors.Is(err, domain.ErrUnresolvedSegment))
}

func TestSegmentsForVessel(t *testing.T) {
	assert.Equal(t, []int{6, 7, 8}, SegmentsForVessel(domain.VesselLAD))
	assert.Equal(t, []int{11, 13, 14}, SegmentsForVessel(domain.VesselLCX))
	assert.Equal(t, []int{4, 15}, SegmentsForVessel(domain.VesselPDA))
	assert.Empty(t, SegmentsForVessel("LIMA"))

	// callers must not be able to corrupt the table
	ids := SegmentsForVessel(domain.VesselRCA)
	ids[0] = 99
	assert.Equal(t, []int{1, 2, 3}, SegmentsForVessel(domain.VesselRCA))
}

func TestList(t *testing.T) {
	right := List(domain.DominanceRight)
	left := List(domain.DominanceLeft)

	assert.Len(t, right, 17)
	assert.Len(t, left, 16)
	assert.Equal(t, 1, right[0].ID)

	for _, s := range left {
		assert.NotEqual(t, 4, s.ID)
		assert.NotEqual(t, 16, s.ID)
	}
}

func TestConcurrentReads(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := 1; id <= 18; id++ {
				_, _ = WeightFor(id, domain.DominanceLeft)
				_ = SegmentsForVessel(domain.VesselOM)
			}
		}()
	}
	wg.Wait()
}
