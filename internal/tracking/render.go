package tracking

import "github.com/angelmondragon/localdrop/internal/gateway"

// Point is a map coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RenderState describes what the map shows for one order snapshot.
type RenderState struct {
	Status      Status
	Destination Point
	StoreMarker *Point
	RiderMarker *Point
	// Route is nil when no route is drawn. Waypoints are in travel order.
	Route []Point
}

// Render applies the per-state display policy to an order.
func Render(order *gateway.Order) RenderState {
	if order == nil {
		return RenderState{}
	}
	rs := RenderState{
		Status:      Status(order.Status),
		Destination: Point{Lat: float64(order.DeliveryLat), Lng: float64(order.DeliveryLng)},
	}
	store := Point{Lat: float64(order.StoreLat), Lng: float64(order.StoreLng)}

	switch rs.Status {
	case StatusRiderAssigned, StatusInTransit:
		rs.StoreMarker = &store
	}

	rider, hasRider := riderPoint(order)
	switch rs.Status {
	case StatusRiderAssigned, StatusInTransit, StatusDelivered:
		if hasRider {
			rs.RiderMarker = &rider
		}
	default:
		return rs
	}
	if !hasRider {
		return rs
	}
	switch rs.Status {
	case StatusRiderAssigned:
		rs.Route = []Point{rider, store, rs.Destination}
	case StatusInTransit:
		rs.Route = []Point{rider, rs.Destination}
	}
	return rs
}

func riderPoint(order *gateway.Order) (Point, bool) {
	if order.RiderLat == nil || order.RiderLng == nil {
		return Point{}, false
	}
	return Point{Lat: float64(*order.RiderLat), Lng: float64(*order.RiderLng)}, true
}
