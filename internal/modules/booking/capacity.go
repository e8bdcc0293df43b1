package booking

import (
	"sort"
	"time"

	"coworking/internal/domain"
	"coworking/internal/pkg/timeutil"
)

type interval struct {
	start, end time.Time
}

func bookingIntervals(bookings []domain.Booking) []interval {
	out := make([]interval, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, interval{start: b.StartTime, end: b.EndTime})
	}
	return out
}

// fitsCapacity reports whether candidate can be added to existing without the
// number of simultaneous intervals ever exceeding capacity. Occupancy only
// changes at interval boundaries, so it is enough to sample every boundary
// that falls inside the candidate.
func fitsCapacity(capacity int64, existing []interval, candidate interval) bool {
	if capacity <= 0 {
		return false
	}

	points := []time.Time{candidate.start, candidate.end}
	for _, iv := range existing {
		points = append(points, iv.start, iv.end)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	var prev time.Time
	for i, t := range points {
		if i > 0 && t.Equal(prev) {
			continue
		}
		prev = t
		if !timeutil.Contains(candidate.start, candidate.end, t) {
			continue
		}

		count := int64(1)
		for _, iv := range existing {
			if timeutil.Contains(iv.start, iv.end, t) {
				count++
			}
		}
		if count > capacity {
			return false
		}
	}
	return true
}
