package scheduler

import (
	"sort"

	"github.com/iliyamo/table-reservation/internal/model"
)

// DefaultCombinationCeiling is the maximum number of tables one party
// may be assigned.
const DefaultCombinationCeiling = 4

// SizeDemand returns the number of units of class needed to seat
// partySize guests: ceil(partySize / SeatCount).  More than one unit
// requires a combinable class and may not exceed ceiling; otherwise
// ErrNoFeasibleClass is returned.
func SizeDemand(partySize int, class model.TableClass, ceiling int) (int, error) {
	if partySize <= 0 {
		return 0, invalidf("party size must be positive, got %d", partySize)
	}
	if class.SeatCount <= 0 {
		return 0, invalidf("class %d has non-positive seat count %d", class.ID, class.SeatCount)
	}
	if ceiling <= 0 {
		ceiling = DefaultCombinationCeiling
	}
	units := (partySize + class.SeatCount - 1) / class.SeatCount
	if units > 1 && !class.Combinable {
		return 0, ErrNoFeasibleClass
	}
	if units > ceiling {
		return 0, ErrNoFeasibleClass
	}
	return units, nil
}

// FeasibleClass is a class that can seat a party together with the
// number of units it would take.
type FeasibleClass struct {
	Class         model.TableClass `json:"class"`
	UnitsRequired int              `json:"units_required"`
}

// Feasible filters classes down to those able to seat partySize, ordered
// by fewest units, then fewest empty seats, then class id.  Classes with
// fewer units than the party needs are skipped.
func Feasible(partySize int, classes []model.TableClass, ceiling int) ([]FeasibleClass, error) {
	if partySize <= 0 {
		return nil, invalidf("party size must be positive, got %d", partySize)
	}
	out := make([]FeasibleClass, 0, len(classes))
	for _, c := range classes {
		units, err := SizeDemand(partySize, c, ceiling)
		if err != nil || units > c.Capacity {
			continue
		}
		out = append(out, FeasibleClass{Class: c, UnitsRequired: units})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UnitsRequired != out[j].UnitsRequired {
			return out[i].UnitsRequired < out[j].UnitsRequired
		}
		wi := out[i].UnitsRequired*out[i].Class.SeatCount - partySize
		wj := out[j].UnitsRequired*out[j].Class.SeatCount - partySize
		if wi != wj {
			return wi < wj
		}
		return out[i].Class.ID < out[j].Class.ID
	})
	return out, nil
}
