package dayphase

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Calculator derives day/night for a fixed site; it backs the day_night
// flag of stations that have no group address bound for it.
type Calculator struct {
	latitude  float64
	longitude float64
}

func NewCalculator(latitude, longitude float64) *Calculator {
	return &Calculator{
		latitude:  latitude,
		longitude: longitude,
	}
}

// IsNight reports whether t lies outside the local sunrise/sunset window.
func (c *Calculator) IsNight(t time.Time) bool {
	rise, set := sunrise.SunriseSunset(c.latitude, c.longitude, t.Year(), t.Month(), t.Day())
	if rise.IsZero() && set.IsZero() {
		// polar day or night, fall back to the clock
		hour := t.Hour()
		return hour < 6 || hour >= 22
	}
	return t.Before(rise) || t.After(set)
}

// IsNightNow is the time.Now variant used as a station fallback.
func (c *Calculator) IsNightNow() bool {
	return c.IsNight(time.Now().UTC())
}
