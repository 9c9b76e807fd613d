package gateway

import (
	"context"
	"net/url"
	"strconv"
)

// Store talks to the store/ namespace used by store owners.
type Store struct {
	*Client
}

func NewStore(baseURL string, opts ...Option) (*Store, error) {
	c, err := New(baseURL, RoleStore, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{Client: c}, nil
}

func (s *Store) Login(ctx context.Context, req LoginRequest) (*AuthResponse[StoreProfile], error) {
	return login[StoreProfile](ctx, s.Client, req)
}

func (s *Store) Profile(ctx context.Context, storeUserID string) (*StoreProfile, error) {
	return profile[StoreProfile](ctx, s.Client, storeUserID)
}

func (s *Store) Homepage(ctx context.Context, storeUserID string) (*StoreDashboard, error) {
	var out StoreDashboard
	if err := s.get(ctx, "homepage", url.Values{"id": {storeUserID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderProcess advances an order to status on behalf of the store.
func (s *Store) OrderProcess(ctx context.Context, storeUserID, orderID string, status int) (*Envelope, error) {
	payload := map[string]string{
		"id":       storeUserID,
		"order_id": orderID,
		"status":   strconv.Itoa(status),
	}
	var out Envelope
	if err := s.post(ctx, "orderProcess", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetItem(ctx context.Context, storeUserID string) (*StoreItemsResponse, error) {
	var out StoreItemsResponse
	if err := s.get(ctx, "getItem", url.Values{"id": {storeUserID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangeStatus toggles an item's availability.
func (s *Store) ChangeStatus(ctx context.Context, itemID string, available bool) (*Envelope, error) {
	var out Envelope
	if err := s.post(ctx, "changeStatus", map[string]string{"id": itemID, "status": boolFlag(available)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateInfo(ctx context.Context, storeUserID string, fields map[string]string) (*Envelope, error) {
	return updateInfo(ctx, s.Client, storeUserID, fields)
}

func (s *Store) StoreOpen(ctx context.Context, storeUserID string, open bool) (*Envelope, error) {
	var out Envelope
	if err := s.post(ctx, "storeOpen", map[string]string{"id": storeUserID, "open": boolFlag(open)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Plan(ctx context.Context, storeUserID string) (*PlanResponse, error) {
	var out PlanResponse
	if err := s.get(ctx, "plan", url.Values{"id": {storeUserID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
