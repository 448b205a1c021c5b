// Package catalog holds the published SYNTAX coronary segment model: segment
// identities, their vessel affiliation, and dominance-dependent weights.
// The table is built once at package initialisation and never mutated, so it
// is safe for unsynchronised concurrent reads.
package catalog

import (
	"sort"

	"github.com/coronary-score-server/internal/domain"
)

// Segment is one entry of the segment model.
type Segment struct {
	ID       int
	Label    string
	Name     string
	Vessel   domain.Vessel
	Location domain.Location
	// weights keyed by dominance; a missing key means the segment does not
	// exist under that dominance
	weights map[domain.Dominance]float64
}

// Weight returns the SYNTAX weight under dominance d.
func (s Segment) Weight(d domain.Dominance) (float64, bool) {
	w, ok := s.weights[weightColumn(d)]
	return w, ok
}

// AppliesTo reports whether the segment exists under dominance d.
func (s Segment) AppliesTo(d domain.Dominance) bool {
	_, ok := s.weights[weightColumn(d)]
	return ok
}

// SegmentInfo is the exported, serialisable view of a segment under one
// dominance.
type SegmentInfo struct {
	ID       int             `json:"id"`
	Label    string          `json:"label"`
	Name     string          `json:"name"`
	Vessel   domain.Vessel   `json:"vessel"`
	Location domain.Location `json:"location"`
	Weight   float64         `json:"weight"`
}

func both(right, left float64) map[domain.Dominance]float64 {
	return map[domain.Dominance]float64{domain.DominanceRight: right, domain.DominanceLeft: left}
}

func rightOnly(w float64) map[domain.Dominance]float64 {
	return map[domain.Dominance]float64{domain.DominanceRight: w}
}

func leftOnly(w float64) map[domain.Dominance]float64 {
	return map[domain.Dominance]float64{domain.DominanceLeft: w}
}

var segments = map[int]Segment{
	1:  {ID: 1, Label: "1", Name: "RCA proximal", Vessel: domain.VesselRCA, Location: domain.LocationProximal, weights: both(1, 0)},
	2:  {ID: 2, Label: "2", Name: "RCA mid", Vessel: domain.VesselRCA, Location: domain.LocationMid, weights: both(1, 0)},
	3:  {ID: 3, Label: "3", Name: "RCA distal", Vessel: domain.VesselRCA, Location: domain.LocationDistal, weights: both(1, 0)},
	4:  {ID: 4, Label: "4", Name: "Posterior descending (from RCA)", Vessel: domain.VesselPDA, Location: domain.LocationDistal, weights: rightOnly(1)},
	16: {ID: 16, Label: "16", Name: "Posterolateral branch (from RCA)", Vessel: domain.VesselPLV, Location: domain.LocationDistal, weights: rightOnly(0.5)},
	5:  {ID: 5, Label: "5", Name: "Left main", Vessel: domain.VesselLM, Location: domain.LocationProximal, weights: both(5, 6)},
	6:  {ID: 6, Label: "6", Name: "LAD proximal", Vessel: domain.VesselLAD, Location: domain.LocationProximal, weights: both(3.5, 3.5)},
	7:  {ID: 7, Label: "7", Name: "LAD mid", Vessel: domain.VesselLAD, Location: domain.LocationMid, weights: both(2.5, 2.5)},
	8:  {ID: 8, Label: "8", Name: "LAD apical", Vessel: domain.VesselLAD, Location: domain.LocationDistal, weights: both(1, 1)},
	9:  {ID: 9, Label: "9", Name: "First diagonal", Vessel: domain.VesselD, Location: domain.LocationProximal, weights: both(1, 1)},
	10: {ID: 10, Label: "10", Name: "Second diagonal", Vessel: domain.VesselD, Location: domain.LocationDistal, weights: both(0.5, 0.5)},
	11: {ID: 11, Label: "11", Name: "LCX proximal", Vessel: domain.VesselLCX, Location: domain.LocationProximal, weights: both(1.5, 2.5)},
	12: {ID: 12, Label: "12", Name: "Intermediate/anterolateral", Vessel: domain.VesselOM, Location: domain.LocationProximal, weights: both(1, 1)},
	17: {ID: 17, Label: "12a", Name: "First obtuse marginal", Vessel: domain.VesselOM, Location: domain.LocationProximal, weights: both(1, 1)},
	18: {ID: 18, Label: "12b", Name: "Second obtuse marginal", Vessel: domain.VesselOM, Location: domain.LocationDistal, weights: both(1, 1)},
	13: {ID: 13, Label: "13", Name: "LCX distal", Vessel: domain.VesselLCX, Location: domain.LocationMid, weights: both(0.5, 1.5)},
	14: {ID: 14, Label: "14", Name: "Left posterolateral", Vessel: domain.VesselLCX, Location: domain.LocationDistal, weights: both(0.5, 1)},
	15: {ID: 15, Label: "15", Name: "Posterior descending (from LCX)", Vessel: domain.VesselPDA, Location: domain.LocationDistal, weights: leftOnly(1)},
}

// byVessel is derived once from segments.
var byVessel = func() map[domain.Vessel][]int {
	out := make(map[domain.Vessel][]int)
	for id, seg := range segments {
		out[seg.Vessel] = append(out[seg.Vessel], id)
	}
	for v := range out {
		sort.Ints(out[v])
	}
	return out
}()

// weightColumn maps balanced dominance onto the right-dominance column.
func weightColumn(d domain.Dominance) domain.Dominance {
	switch d.OrDefault() {
	case domain.DominanceLeft:
		return domain.DominanceLeft
	default:
		return domain.DominanceRight
	}
}

// Lookup returns the segment with the given id.
func Lookup(id int) (Segment, bool) {
	seg, ok := segments[id]
	return seg, ok
}

// WeightFor returns the SYNTAX weight of segmentID under dominance. Unknown
// ids and segments absent under the dominance yield a *domain.LookupError.
func WeightFor(segmentID int, dominance domain.Dominance) (float64, error) {
	seg, ok := segments[segmentID]
	if !ok {
		return 0, &domain.LookupError{SegmentID: segmentID, Dominance: dominance.OrDefault(), Err: domain.ErrUnknownSegment}
	}
	w, ok := seg.Weight(dominance)
	if !ok {
		return 0, &domain.LookupError{SegmentID: segmentID, Dominance: dominance.OrDefault(), Err: domain.ErrSegmentNotApplicable}
	}
	return w, nil
}

// SegmentsForVessel returns the ids of every segment on vessel, ascending.
func SegmentsForVessel(vessel domain.Vessel) []int {
	ids := byVessel[vessel]
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// ResolveSegment maps a vessel and location to its canonical segment under
// dominance.
func ResolveSegment(vessel domain.Vessel, location domain.Location, dominance domain.Dominance) (int, error) {
	d := dominance.OrDefault()
	id := 0
	switch vessel {
	case domain.VesselLM:
		id = 5
	case domain.VesselLAD:
		id = pick(location, 6, 7, 8)
	case domain.VesselD:
		id = pick(location, 9, 9, 10)
	case domain.VesselLCX:
		id = pick(location, 11, 13, 14)
	case domain.VesselOM:
		id = pick(location, 17, 17, 18)
	case domain.VesselRCA:
		id = pick(location, 1, 2, 3)
	case domain.VesselPDA:
		id = 4
		if d == domain.DominanceLeft {
			id = 15
		}
	case domain.VesselPLV:
		id = 16
		if d == domain.DominanceLeft {
			id = 14
		}
	}
	if id == 0 {
		return 0, &domain.LookupError{Vessel: vessel, Location: location, Dominance: d, Err: domain.ErrUnresolvedSegment}
	}
	return id, nil
}

func pick(location domain.Location, proximal, mid, distal int) int {
	switch location {
	case domain.LocationProximal:
		return proximal
	case domain.LocationMid:
		return mid
	case domain.LocationDistal:
		return distal
	default:
		return 0
	}
}

// List returns every segment applicable under dominance, ordered by id.
func List(dominance domain.Dominance) []SegmentInfo {
	ids := make([]int, 0, len(segments))
	for id := range segments {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]SegmentInfo, 0, len(ids))
	for _, id := range ids {
		seg := segments[id]
		w, ok := seg.Weight(dominance)
		if !ok {
			continue
		}
		out = append(out, SegmentInfo{
			ID:       seg.ID,
			Label:    seg.Label,
			Name:     seg.Name,
			Vessel:   seg.Vessel,
			Location: seg.Location,
			Weight:   w,
		})
	}
	return out
}
