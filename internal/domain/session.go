package domain

const (
	SessionScheduled = "Scheduled"
	SessionCancelled = "Cancelled"
	SessionCompleted = "Completed"
)

// Session is the movie-service view of a screening, as received over the wire.
type Session struct {
	ID             string `json:"id"`
	MovieID        string `json:"movieId"`
	HallID         string `json:"hallId"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	Price          Price  `json:"price"`
	AvailableSeats int    `json:"availableSeats"`
	Status         string `json:"status"`
}

func (s *Session) IsScheduled() bool {
	return s.Status == SessionScheduled
}
