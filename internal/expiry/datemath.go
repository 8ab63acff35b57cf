package expiry

import (
	"math"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

const day = 24 * time.Hour

// DaysUntil returns the whole calendar days from ref to target. A target on
// the same day yields 0, yesterday yields -1.
func DaysUntil(target, ref model.Date) int {
	t := model.DateOf(target.Time)
	r := model.DateOf(ref.Time)
	return int(math.Ceil(float64(t.Sub(r.Time)) / float64(day)))
}

// Today returns the calendar day of now in now's location. Hosts choose the
// location; the engine never assumes one.
func Today(now time.Time) model.Date {
	return model.DateOf(now)
}
