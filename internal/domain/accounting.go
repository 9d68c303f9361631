package domain

// SeatAccount is one flight's seat ledger at a quiescent point. Held is the sum of
// seat counts over bookings that are not cancelled.
type SeatAccount struct {
	FlightID  int64 `json:"flight_id"`
	Capacity  int   `json:"capacity"`
	Available int   `json:"available"`
	Held      int   `json:"held"`
}

// Drift is zero when available + held == capacity.
func (a SeatAccount) Drift() int {
	return a.Available + a.Held - a.Capacity
}

func (a SeatAccount) Balanced() bool {
	return a.Drift() == 0 && a.Available >= 0
}
