package grid

import "sort"

// assignLanes splits each day's overlapping events into side-by-side lanes.
//
// Events of one day are swept in start order and grouped into clusters of
// transitively overlapping spans. Inside a cluster each event takes the
// lowest lane whose previous occupant has ended; every member of the
// cluster then shares the cluster's lane count so widths line up.
// Touching spans (one ends exactly when the next starts) do not overlap.
func assignLanes(placed []PlacedEvent, cols int) {
	byDay := make(map[int][]int)
	for i := range placed {
		d := placed[i].DayIndex
		byDay[d] = append(byDay[d], i)
	}

	for day, idx := range byDay {
		sort.SliceStable(idx, func(a, b int) bool {
			pa, pb := placed[idx[a]], placed[idx[b]]
			if pa.TopOffset != pb.TopOffset {
				return pa.TopOffset < pb.TopOffset
			}
			return pa.HeightOffset > pb.HeightOffset
		})

		var (
			cluster   []int
			laneEnds  []float64
			clusterTo float64
		)
		flush := func() {
			n := len(laneEnds)
			for _, i := range cluster {
				pe := &placed[i]
				pe.Lanes = n
				pe.LeftFraction = (float64(day) + float64(pe.Lane)/float64(n)) / float64(cols)
				pe.WidthFraction = 1 / (float64(cols) * float64(n))
			}
			cluster = cluster[:0]
			laneEnds = laneEnds[:0]
		}

		for _, i := range idx {
			pe := &placed[i]
			top, bottom := pe.TopOffset, pe.TopOffset+pe.HeightOffset

			if len(cluster) > 0 && top >= clusterTo {
				flush()
			}

			lane := -1
			for l, end := range laneEnds {
				if end <= top {
					lane = l
					break
				}
			}
			if lane < 0 {
				lane = len(laneEnds)
				laneEnds = append(laneEnds, bottom)
			} else {
				laneEnds[lane] = bottom
			}
			pe.Lane = lane

			if len(cluster) == 0 || bottom > clusterTo {
				clusterTo = bottom
			}
			cluster = append(cluster, i)
		}
		if len(cluster) > 0 {
			flush()
		}
	}
}
