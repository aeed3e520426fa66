// Package stats derives counts, the nearest available spot and walking
// directions from a registry snapshot. Nothing here is cached.
package stats

import (
	"fmt"
	"math"
	"strconv"

	"spotwise-backend/config"
	"spotwise-backend/internal/model"
)

// Compute derives the dashboard counters.
func Compute(spots []model.Spot) model.Stats {
	st := model.Stats{Total: len(spots)}
	taken := 0
	for _, s := range spots {
		if s.IsOccupied {
			st.Occupied++
		}
		if s.IsReserved {
			st.Reserved++
		}
		if s.IsOccupied || s.IsReserved {
			taken++
		} else {
			st.Available++
		}
	}
	if st.Total > 0 {
		st.OccupancyRate = int(math.Round(100 * float64(taken) / float64(st.Total)))
	}
	return st
}

// Location is a reported user position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ParseLocation parses query-string coordinates. Missing, malformed or
// out-of-range values yield no location.
func ParseLocation(lat, lng string) (*Location, bool) {
	if lat == "" || lng == "" {
		return nil, false
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || math.IsNaN(la) || la < -90 || la > 90 {
		return nil, false
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil || math.IsNaN(lo) || lo < -180 || lo > 180 {
		return nil, false
	}
	return &Location{Latitude: la, Longitude: lo}, true
}

// Nearest picks the first available spot in registry order. Spots carry no
// geographic position, so the location only gates the feature: without one
// there is no nearest spot.
func Nearest(spots []model.Spot, loc *Location) (model.Spot, bool) {
	if loc == nil {
		return model.Spot{}, false
	}
	for _, s := range spots {
		if s.Available() {
			return s, true
		}
	}
	return model.Spot{}, false
}

// Navigator builds placeholder walking directions.
type Navigator struct {
	distance float64
	speed    float64
}

// NewNavigator creates a navigator from configuration.
func NewNavigator(cfg config.NavigationConfig) *Navigator {
	return &Navigator{distance: cfg.DistanceMeters, speed: cfg.WalkingMetersPerMin}
}

// Navigate returns directions to spot.
func (n *Navigator) Navigate(spot model.Spot) model.NavigationInfo {
	minutes := 1
	if n.speed > 0 {
		minutes = max(1, int(math.Ceil(n.distance/n.speed)))
	}
	return model.NavigationInfo{
		DistanceMeters:     n.distance,
		WalkingTimeMinutes: minutes,
		Directions: []string{
			"Head north",
			"Turn right at entrance",
			fmt.Sprintf("Spot %s is on your left", spot.SpotNumber),
		},
	}
}
