package syncengine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/smallbiznis/ordersync/internal/config"
)

// Synthesizer fabricates order dates and times, which the operational store lacks.
// Output depends only on the seed, the order id and the base date, so reruns agree.
type Synthesizer struct {
	seed          uint64
	openHour      int
	closeHour     int
	maxOffsetDays int
}

func NewSynthesizer(seed uint64, rules config.SyncRules) *Synthesizer {
	openHour, closeHour := rules.BusinessHours.OpenHour, rules.BusinessHours.CloseHour
	if openHour < 0 || openHour > 23 || closeHour <= openHour || closeHour > 24 {
		openHour, closeHour = 8, 24
	}
	maxOffset := rules.MaxOrderOffsetDays
	if maxOffset < 0 {
		maxOffset = 0
	}
	return &Synthesizer{
		seed:          seed,
		openHour:      openHour,
		closeHour:     closeHour,
		maxOffsetDays: maxOffset,
	}
}

// OrderMoment returns the synthetic order date (base plus up to maxOffsetDays) and an
// HH:MM:SS time within business hours.
func (s *Synthesizer) OrderMoment(orderID int64, base time.Time) (time.Time, string) {
	r := rand.New(rand.NewPCG(s.seed, uint64(orderID)))

	offset := r.IntN(s.maxOffsetDays + 1)
	date := DateOnly(base).AddDate(0, 0, offset)

	minute := r.IntN((s.closeHour - s.openHour) * 60)
	hour := s.openHour + minute/60
	return date, fmt.Sprintf("%02d:%02d:00", hour, minute%60)
}
