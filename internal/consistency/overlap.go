package consistency

import (
	"sort"

	"hotelsync/internal/models"
)

// Above this many bookings DetectOverlaps switches to the sweep.
const sweepThreshold = 32

// Overlaps applies the half-open interval test: a stay ending on the day
// another begins does not overlap it.
func Overlaps(a, b models.Booking) bool {
	return a.CheckInDate.Before(b.CheckOutDate) && b.CheckInDate.Before(a.CheckOutDate)
}

// DetectOverlaps reports every intersecting pair among bookings that are
// already narrowed to one room and to active statuses.
func DetectOverlaps(bookings []models.Booking) []models.BookingPair {
	if len(bookings) > sweepThreshold {
		return DetectOverlapsSweep(bookings)
	}

	sorted := sortedByCheckIn(bookings)
	var pairs []models.BookingPair
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if Overlaps(sorted[i], sorted[j]) {
				pairs = append(pairs, models.BookingPair{First: sorted[i], Second: sorted[j]})
			}
		}
	}
	return pairs
}

// DetectOverlapsSweep sorts by check-in and keeps a window of stays still open
// at the current check-in, so every intersecting pair is found without the
// full pairwise scan.
func DetectOverlapsSweep(bookings []models.Booking) []models.BookingPair {
	sorted := sortedByCheckIn(bookings)

	var hits [][2]int
	var open []int
	for i, cur := range sorted {
		kept := open[:0]
		for _, j := range open {
			if sorted[j].CheckOutDate.After(cur.CheckInDate) {
				kept = append(kept, j)
			}
		}
		open = kept

		for _, j := range open {
			if Overlaps(sorted[j], cur) {
				hits = append(hits, [2]int{j, i})
			}
		}
		open = append(open, i)
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a][0] != hits[b][0] {
			return hits[a][0] < hits[b][0]
		}
		return hits[a][1] < hits[b][1]
	})

	var pairs []models.BookingPair
	for _, h := range hits {
		pairs = append(pairs, models.BookingPair{First: sorted[h[0]], Second: sorted[h[1]]})
	}
	return pairs
}

func sortedByCheckIn(bookings []models.Booking) []models.Booking {
	sorted := make([]models.Booking, len(bookings))
	copy(sorted, bookings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bookingLess(sorted[i], sorted[j])
	})
	return sorted
}

func bookingLess(a, b models.Booking) bool {
	if !a.CheckInDate.Equal(b.CheckInDate) {
		return a.CheckInDate.Before(b.CheckInDate)
	}
	return a.ID < b.ID
}
