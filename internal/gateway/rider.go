package gateway

import (
	"context"
	"net/url"

	"github.com/angelmondragon/localdrop/internal/state"
)

// Rider talks to the dboy/ namespace.
type Rider struct {
	*Client
}

func NewRider(baseURL string, opts ...Option) (*Rider, error) {
	c, err := New(baseURL, RoleRider, opts...)
	if err != nil {
		return nil, err
	}
	return &Rider{Client: c}, nil
}

func (r *Rider) Login(ctx context.Context, req LoginRequest) (*AuthResponse[RiderProfile], error) {
	return login[RiderProfile](ctx, r.Client, req)
}

func (r *Rider) Profile(ctx context.Context, riderID string) (*RiderProfile, error) {
	return profile[RiderProfile](ctx, r.Client, riderID)
}

// Homepage lists the orders offered to or held by the rider.
func (r *Rider) Homepage(ctx context.Context, amb state.Ambient, riderID string) (*RiderHome, error) {
	params := ambientQuery(amb, state.KeyLangID, state.KeyLat, state.KeyLng)
	params.Set("id", riderID)
	var out RiderHome
	if err := r.get(ctx, "homepage", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Rider) Accept(ctx context.Context, riderID, orderID string) (*Envelope, error) {
	return r.orderAction(ctx, "accept", riderID, orderID)
}

func (r *Rider) StartRide(ctx context.Context, riderID, orderID string) (*Envelope, error) {
	return r.orderAction(ctx, "startRide", riderID, orderID)
}

// SetStatus pushes the online flag together with the current coordinates.
func (r *Rider) SetStatus(ctx context.Context, riderID string, online bool, lat, lng string) (*Envelope, error) {
	payload := map[string]string{
		"id":     riderID,
		"status": boolFlag(online),
		"lat":    nullIfEmpty(lat),
		"lng":    nullIfEmpty(lng),
	}
	var out Envelope
	if err := r.post(ctx, "setStatus", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Rider) Earn(ctx context.Context, riderID string) (*Earnings, error) {
	var out Earnings
	if err := r.get(ctx, "earn", url.Values{"id": {riderID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Rider) UpdateInfo(ctx context.Context, riderID string, fields map[string]string) (*Envelope, error) {
	return updateInfo(ctx, r.Client, riderID, fields)
}

func (r *Rider) orderAction(ctx context.Context, endpoint, riderID, orderID string) (*Envelope, error) {
	var out Envelope
	if err := r.post(ctx, endpoint, map[string]string{"id": riderID, "order_id": orderID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
