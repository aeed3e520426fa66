package model

// Stats is derived from the registry on every read, never cached.
type Stats struct {
	Total         int `json:"total"`
	Occupied      int `json:"occupied"`
	Reserved      int `json:"reserved"`
	Available     int `json:"available"`
	OccupancyRate int `json:"occupancyRate"`
}

// NavigationInfo describes how to walk to the current nearest spot.
type NavigationInfo struct {
	DistanceMeters     float64  `json:"distance"`
	WalkingTimeMinutes int      `json:"walkingTime"`
	Directions         []string `json:"directions"`
}
