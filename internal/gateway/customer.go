package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/angelmondragon/localdrop/internal/state"
)

// Customer is the default namespace client.
type Customer struct {
	*Client
}

func NewCustomer(baseURL string, opts ...Option) (*Customer, error) {
	c, err := New(baseURL, RoleCustomer, opts...)
	if err != nil {
		return nil, err
	}
	return &Customer{Client: c}, nil
}

func (c *Customer) Login(ctx context.Context, req LoginRequest) (*AuthResponse[CustomerProfile], error) {
	return login[CustomerProfile](ctx, c.Client, req)
}

func (c *Customer) Signup(ctx context.Context, req SignupRequest) (*AuthResponse[CustomerProfile], error) {
	var out AuthResponse[CustomerProfile]
	if err := c.post(ctx, "signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SocialLogin signs in a provider identity. A non-done answer means the
// account does not exist yet.
func (c *Customer) SocialLogin(ctx context.Context, req SocialLoginRequest) (*AuthResponse[CustomerProfile], error) {
	var out AuthResponse[CustomerProfile]
	if err := c.post(ctx, "socialLogin", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) Homepage(ctx context.Context, amb state.Ambient) (*Homepage, error) {
	params := ambientQuery(amb, state.KeyLangID, state.KeyUserID, state.KeyCityID, state.KeyCartNo, state.KeyLat, state.KeyLng)
	var out Homepage
	if err := c.get(ctx, "homepage", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) StoreItems(ctx context.Context, amb state.Ambient, storeID string) (*StoreDetail, error) {
	params := ambientQuery(amb, state.KeyLangID, state.KeyCartNo, state.KeyUserID)
	params.Set("id", storeID)
	var out StoreDetail
	if err := c.get(ctx, "item", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) AddToCart(ctx context.Context, amb state.Ambient, req AddToCartRequest) (*CartResponse, error) {
	addons := req.Addons
	if addons == nil {
		addons = []string{}
	}
	qty := req.Qty
	if qty <= 0 {
		qty = 1
	}
	payload := map[string]any{
		"cart_no": amb.CartNo,
		"user_id": amb.UserID,
		"item_id": req.ItemID,
		"price":   req.Price,
		"size_id": nullIfEmpty(req.SizeID),
		"addon":   addons,
		"qty":     qty,
	}
	var out CartResponse
	if err := c.post(ctx, "addToCart", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCart prices the cart for the ambient coordinates.
func (c *Customer) GetCart(ctx context.Context, amb state.Ambient) (*CartResponse, error) {
	params := ambientQuery(amb, state.KeyCartNo, state.KeyUserID, state.KeyLangID, state.KeyCityID, state.KeyLat, state.KeyLng)
	var out CartResponse
	if err := c.get(ctx, "getCart", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) UpdateCart(ctx context.Context, amb state.Ambient, lineID string, dir UpdateDirection) (*CartResponse, error) {
	payload := map[string]any{
		"cart_no": amb.CartNo,
		"id":      lineID,
		"type":    string(dir),
		"lat":     amb.Lat,
		"lng":     amb.Lng,
	}
	var out CartResponse
	if err := c.post(ctx, "updateCart", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) CartCount(ctx context.Context, amb state.Ambient) (int, error) {
	var out struct {
		Envelope
		Count Int `json:"count"`
	}
	if err := c.get(ctx, "cartCount", ambientQuery(amb, state.KeyCartNo), &out); err != nil {
		return 0, err
	}
	return int(out.Count), nil
}

func (c *Customer) UserInfo(ctx context.Context, userID string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	if err := c.get(ctx, "userInfo", url.Values{"id": {userID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the customer profile only.
func (c *Customer) Profile(ctx context.Context, userID string) (*CustomerProfile, error) {
	out, err := c.UserInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !out.OK() || out.User == nil {
		return nil, &Error{Message: out.Failure("profile unavailable")}
	}
	return out.User, nil
}

func (c *Customer) Addresses(ctx context.Context, userID string) ([]Address, error) {
	var out AddressesResponse
	if err := c.get(ctx, "address", url.Values{"user_id": {userID}}, &out); err != nil {
		return nil, err
	}
	return out.Addresses, nil
}

func (c *Customer) SaveAddress(ctx context.Context, userID string, in AddressInput) (*Envelope, error) {
	payload := map[string]any{
		"user_id":  userID,
		"lat":      state.FormatCoordinate(in.Lat),
		"lng":      state.FormatCoordinate(in.Lng),
		"address":  strings.TrimSpace(in.Address),
		"landmark": strings.TrimSpace(in.Landmark),
	}
	var out Envelope
	if err := c.post(ctx, "addAddress", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) Wallet(ctx context.Context, userID string) (*WalletResponse, error) {
	var out WalletResponse
	if err := c.get(ctx, "wallet", url.Values{"user_id": {userID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOrder submits JSON, or multipart when proof is non-nil.
func (c *Customer) PlaceOrder(ctx context.Context, req OrderRequest, proof *Attachment) (*PlaceOrderResponse, error) {
	var out PlaceOrderResponse
	if proof != nil {
		file := *proof
		if file.Field == "" {
			file.Field = "proof"
		}
		if err := c.postMultipart(ctx, "order", req.form(), file, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	if err := c.post(ctx, "order", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) OrderDetail(ctx context.Context, orderID string, langID string) (*OrderDetailResponse, error) {
	params := url.Values{"id": {orderID}, "lang_id": {nullIfEmpty(langID)}}
	var out OrderDetailResponse
	if err := c.get(ctx, "orderDetail", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Customer) Rating(ctx context.Context, req RatingRequest) (*Envelope, error) {
	var out Envelope
	if err := c.post(ctx, "rating", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func login[P any](ctx context.Context, c *Client, req LoginRequest) (*AuthResponse[P], error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	var out AuthResponse[P]
	if err := c.post(ctx, "login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func profile[P any](ctx context.Context, c *Client, id string) (*P, error) {
	var out ProfileResponse[P]
	if err := c.get(ctx, "userInfo", url.Values{"id": {id}}, &out); err != nil {
		return nil, err
	}
	if !out.OK() || out.User == nil {
		return nil, &Error{Message: out.Failure("profile unavailable")}
	}
	return out.User, nil
}

func updateInfo(ctx context.Context, c *Client, id string, fields map[string]string) (*Envelope, error) {
	payload := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["id"] = id
	var out Envelope
	if err := c.post(ctx, "updateInfo", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
