package tracking

import "strconv"

// Status is the server-reported order state. The client never advances it.
type Status int

const (
	StatusPlaced Status = iota
	StatusConfirmed
	StatusCancelled
	StatusRiderAssigned
	StatusInTransit
	StatusDelivered
	StatusCompleted
)

var statusNames = map[Status]string{
	StatusPlaced:        "placed",
	StatusConfirmed:     "confirmed",
	StatusCancelled:     "cancelled",
	StatusRiderAssigned: "rider_assigned",
	StatusInTransit:     "in_transit",
	StatusDelivered:     "delivered",
	StatusCompleted:     "completed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// Known reports whether the code is one of the seven defined states.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}
