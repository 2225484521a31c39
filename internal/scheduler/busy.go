package scheduler

import (
	"sort"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Booking is the slice of a reservation the availability sweep needs.
type Booking struct {
	ID    uint64
	Start time.Time
	End   time.Time
	Units int
}

// BookingsFrom projects active reservations into sweep input.
// Inactive reservations are dropped.
func BookingsFrom(rs []model.Reservation) []Booking {
	out := make([]Booking, 0, len(rs))
	for _, r := range rs {
		if !r.Status.Active() {
			continue
		}
		out = append(out, Booking{ID: r.ID, Start: r.StartsAt, End: r.EndsAt, Units: r.UnitsRequired})
	}
	return out
}

// BusyIntervals sweeps over the endpoints of bookings and returns the
// maximal windows in which a candidate needing need units would push the
// class past capacity, i.e. where capacity - need - booked < 0.  The
// result is sorted by start and pairwise non-overlapping; touching
// saturated ranges are merged.  A booking whose ID equals excludeID
// (when non-zero) is ignored, as are empty or inverted bookings.
//
// With need = 1 this yields the windows where booked demand already
// meets or exceeds capacity.
func BusyIntervals(bookings []Booking, capacity, need int, excludeID uint64) []model.BusyInterval {
	if need < 1 {
		need = 1
	}
	// Net change in booked units at each endpoint.  Keys are UnixNano so
	// equal instants in different locations collapse to one point.
	delta := make(map[int64]int, 2*len(bookings))
	for _, b := range bookings {
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if !b.Start.Before(b.End) || b.Units <= 0 {
			continue
		}
		delta[b.Start.UnixNano()] += b.Units
		delta[b.End.UnixNano()] -= b.Units
	}
	if len(delta) == 0 {
		return nil
	}
	points := make([]int64, 0, len(delta))
	for p := range delta {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var out []model.BusyInterval
	booked := 0
	for i := 0; i+1 < len(points); i++ {
		// booked is the demand covering [points[i], points[i+1]).
		booked += delta[points[i]]
		if capacity-need-booked >= 0 {
			continue
		}
		lo := time.Unix(0, points[i]).UTC()
		hi := time.Unix(0, points[i+1]).UTC()
		if n := len(out); n > 0 && out[n-1].End.Equal(lo) {
			out[n-1].End = hi
			if booked > out[n-1].PeakUnits {
				out[n-1].PeakUnits = booked
			}
			continue
		}
		out = append(out, model.BusyInterval{Start: lo, End: hi, PeakUnits: booked})
	}
	return out
}

// Conflicts returns the busy intervals intersecting [start, end).
func Conflicts(busy []model.BusyInterval, start, end time.Time) []model.BusyInterval {
	var out []model.BusyInterval
	for _, b := range busy {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out
}
