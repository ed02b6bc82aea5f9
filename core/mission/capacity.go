package mission

import "math"

// Capacity is the derived registration state of a mission. It is never stored.
type Capacity struct {
	// SpotsLeft is nil for unlimited missions. It may be negative when a mission is overbooked.
	SpotsLeft *int `json:"spots_left"`
	IsFull    bool `json:"is_full"`
	// FillRate is the rounded percentage of taken spots, nil for unlimited missions.
	FillRate *int `json:"fill_rate"`
}

// CalculateCapacity derives the capacity of a mission from its maximum participant count
// and its number of non-cancelled registrations.
func CalculateCapacity(maxParticipants *int, activeRegistrations int) Capacity {
	if maxParticipants == nil {
		return Capacity{}
	}

	spotsLeft := *maxParticipants - activeRegistrations
	capa := Capacity{SpotsLeft: &spotsLeft, IsFull: spotsLeft <= 0}
	if *maxParticipants > 0 {
		rate := int(math.Round(float64(activeRegistrations) / float64(*maxParticipants) * 100))
		capa.FillRate = &rate
	}
	return capa
}
