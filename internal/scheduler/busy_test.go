package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/model"
)

func hm(h, m int) time.Time { return time.Date(2024, 5, 1, h, m, 0, 0, time.UTC) }

func eveningLedger() []Booking {
	return []Booking{
		{ID: 1, Start: hm(18, 0), End: hm(20, 0), Units: 2},
		{ID: 2, Start: hm(19, 0), End: hm(21, 0), Units: 1},
	}
}

func TestBusyIntervalsSaturatedWindow(t *testing.T) {
	busy := BusyIntervals(eveningLedger(), 3, 1, 0)
	require.Len(t, busy, 1)
	assert.True(t, busy[0].Start.Equal(hm(19, 0)))
	assert.True(t, busy[0].End.Equal(hm(20, 0)))
	assert.Equal(t, 3, busy[0].PeakUnits)

	assert.Empty(t, Conflicts(busy, hm(20, 0), hm(21, 0)))
	c := Conflicts(busy, hm(19, 30), hm(19, 45))
	require.Len(t, c, 1)
	assert.True(t, c[0].Start.Equal(hm(19, 0)))
}

func TestBusyIntervalsLargerNeed(t *testing.T) {
	busy := BusyIntervals(eveningLedger(), 3, 2, 0)
	require.Len(t, busy, 1)
	assert.True(t, busy[0].Start.Equal(hm(18, 0)))
	assert.True(t, busy[0].End.Equal(hm(20, 0)))
	assert.Equal(t, 3, busy[0].PeakUnits)
}

func TestBusyIntervalsExcludesReservation(t *testing.T) {
	assert.Empty(t, BusyIntervals(eveningLedger(), 3, 1, 1))
}

func TestBusyIntervalsMergesTouchingWindows(t *testing.T) {
	bookings := []Booking{
		{ID: 1, Start: hm(18, 0), End: hm(19, 0), Units: 1},
		{ID: 2, Start: hm(19, 0), End: hm(20, 0), Units: 1},
	}
	busy := BusyIntervals(bookings, 1, 1, 0)
	require.Len(t, busy, 1)
	assert.True(t, busy[0].Start.Equal(hm(18, 0)))
	assert.True(t, busy[0].End.Equal(hm(20, 0)))
}

func TestBusyIntervalsIgnoresEmptyAndInverted(t *testing.T) {
	bookings := []Booking{
		{ID: 1, Start: hm(18, 0), End: hm(18, 0), Units: 5},
		{ID: 2, Start: hm(19, 0), End: hm(18, 0), Units: 5},
		{ID: 3, Start: hm(18, 0), End: hm(19, 0), Units: 0},
	}
	assert.Empty(t, BusyIntervals(bookings, 1, 1, 0))
	assert.Empty(t, BusyIntervals(nil, 1, 1, 0))
}

func TestBusyIntervalsCollapsesEqualInstantsAcrossZones(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	bookings := []Booking{
		{ID: 1, Start: hm(18, 0), End: hm(19, 0), Units: 1},
		{ID: 2, Start: hm(18, 0).In(berlin), End: hm(19, 0).In(berlin), Units: 1},
	}
	busy := BusyIntervals(bookings, 2, 1, 0)
	require.Len(t, busy, 1)
	assert.Equal(t, time.UTC, busy[0].Start.Location())
}

func TestBusyIntervalsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		var bookings []Booking
		for i := 0; i < 12; i++ {
			start := hm(12, 0).Add(time.Duration(rng.Intn(40)) * 15 * time.Minute)
			end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
			bookings = append(bookings, Booking{ID: uint64(i + 1), Start: start, End: end, Units: 1 + rng.Intn(2)})
		}
		capacity := 2 + rng.Intn(4)
		busy := BusyIntervals(bookings, capacity, 1, 0)
		for i, b := range busy {
			require.True(t, b.Start.Before(b.End))
			if i > 0 {
				// sorted, non-overlapping and not touching after merge
				require.True(t, busy[i-1].End.Before(b.Start))
			}
		}
		// idempotent
		assert.Equal(t, busy, BusyIntervals(bookings, capacity, 1, 0))

		// every quarter hour inside a busy window is saturated, every other is not
		for q := 0; q < 60; q++ {
			at := hm(12, 0).Add(time.Duration(q) * 15 * time.Minute)
			load := 0
			for _, b := range bookings {
				if !at.Before(b.Start) && at.Before(b.End) {
					load += b.Units
				}
			}
			inBusy := false
			for _, b := range busy {
				if b.Overlaps(at, at.Add(time.Nanosecond)) {
					inBusy = true
				}
			}
			assert.Equal(t, load >= capacity, inBusy, "round %d at %s", round, at)
		}
	}
}

func TestBookingsFromDropsInactive(t *testing.T) {
	rs := []model.Reservation{
		{ID: 1, Status: model.StatusReserved, UnitsRequired: 1, StartsAt: hm(18, 0), EndsAt: hm(19, 0)},
		{ID: 2, Status: model.StatusCheckedIn, UnitsRequired: 2, StartsAt: hm(18, 0), EndsAt: hm(19, 0)},
		{ID: 3, Status: model.StatusCancelled, UnitsRequired: 1},
		{ID: 4, Status: model.StatusAvailable, UnitsRequired: 1},
		{ID: 5, Status: model.StatusDone, UnitsRequired: 1},
	}
	got := BookingsFrom(rs)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].ID)
	assert.Equal(t, 2, got[1].Units)
}
