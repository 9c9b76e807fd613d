package gateway

import (
	"net/url"

	"github.com/angelmondragon/localdrop/internal/state"
)

type LoginRequest struct {
	Identifier string `json:"email"`
	Password   string `json:"password"`
}

type SignupRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Password          string `json:"password"`
	CityID            string `json:"city_id,omitempty"`
	VerificationToken string `json:"otp_token,omitempty"`
}

// SocialLoginRequest signs in with an identity asserted by an OAuth provider.
type SocialLoginRequest struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// AuthResponse is the login/signup answer of every role namespace.
type AuthResponse[P any] struct {
	Envelope
	User *P `json:"user"`
}

// ProfileResponse answers userInfo.
type ProfileResponse[P any] struct {
	Envelope
	User *P `json:"data"`
}

type CustomerProfile struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Image  string `json:"img,omitempty"`
	Wallet Amount `json:"wallet"`
}

func (p CustomerProfile) UserID() string { return string(p.ID) }

type RiderProfile struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	VehicleType   string `json:"vehicle_type"`
	VehicleNumber string `json:"vehicle_number"`
	Status        Int    `json:"status"`
}

func (p RiderProfile) UserID() string { return string(p.ID) }

type StoreProfile struct {
	ID              ID           `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Address         string       `json:"address"`
	Open            Int          `json:"open"`
	Tax             Amount       `json:"tax"`
	DeliveryCharges []ChargeTier `json:"delivery_charges"`
}

func (p StoreProfile) UserID() string { return string(p.ID) }

// ChargeTier is a distance-bounded delivery fee configured by a store.
type ChargeTier struct {
	UptoKM Amount `json:"km"`
	Charge Amount `json:"charge"`
}

// StoreRef is the store association attached to a customer profile or cart.
type StoreRef struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Tax     Amount `json:"tax"`
	TaxName string `json:"tax_name"`
}

// UserInfoResponse is the customer userInfo answer, with the active store.
type UserInfoResponse struct {
	Envelope
	User    *CustomerProfile `json:"data"`
	Store   *StoreRef        `json:"store"`
	StoreID ID               `json:"store_id"`
}

type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Img  string `json:"img"`
}

type StoreCard struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	Img          string `json:"img"`
	Address      string `json:"address"`
	Rating       Amount `json:"rating"`
	Open         Int    `json:"open"`
	DeliveryTime string `json:"delivery_time"`
}

type Banner struct {
	ID      ID     `json:"id"`
	Img     string `json:"img"`
	StoreID ID     `json:"store_id"`
}

type Size struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Price Amount `json:"price"`
}

type Addon struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Price Amount `json:"price"`
}

type Item struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	Img     string  `json:"img"`
	Price   Amount  `json:"price"`
	StoreID ID      `json:"store_id"`
	InStock Int     `json:"stock"`
	Status  Int     `json:"status"`
	Sizes   []Size  `json:"size"`
	Addons  []Addon `json:"addon"`
}

type Homepage struct {
	Envelope
	Categories []Category        `json:"category"`
	Stores     []StoreCard       `json:"store"`
	Banners    []Banner          `json:"banner"`
	Trending   []Item            `json:"trending"`
	Text       map[string]string `json:"text"`
	Settings   map[string]any    `json:"setting"`
	CartCount  Int               `json:"count"`
}

type StoreDetail struct {
	Envelope
	Store      StoreCard  `json:"store"`
	Categories []Category `json:"category"`
	Items      []Item     `json:"item"`
}

// CartLine is one item instance in the server cart.
type CartLine struct {
	ID     ID      `json:"id"`
	ItemID ID      `json:"item_id"`
	Name   string  `json:"name"`
	Img    string  `json:"img"`
	Price  Amount  `json:"price"`
	Qty    Int     `json:"qty"`
	Unit   string  `json:"unit"`
	SizeID ID      `json:"size_id"`
	Addons []Addon `json:"addon"`
}

// CartSummary is the server-computed aggregate of a cart.
type CartSummary struct {
	ItemTotal      Amount    `json:"item_total"`
	DeliveryCharge Amount    `json:"d_charges"`
	Discount       Amount    `json:"discount"`
	TaxName        string    `json:"tax_name"`
	TaxValue       Amount    `json:"tax_value"`
	Total          Amount    `json:"total"`
	Currency       string    `json:"currency"`
	StoreID        ID        `json:"store_id"`
	Store          *StoreRef `json:"store,omitempty"`
}

type CartData struct {
	Items   []CartLine   `json:"items"`
	Summary *CartSummary `json:"summary"`
}

// CartResponse is the shared answer of addToCart, getCart and updateCart.
type CartResponse struct {
	Envelope
	Data  CartData `json:"data"`
	Count Int      `json:"count"`
}

type AddToCartRequest struct {
	ItemID string   `json:"item_id"`
	Price  string   `json:"price"`
	SizeID string   `json:"size_id"`
	Addons []string `json:"addon"`
	Qty    int      `json:"qty"`
}

// UpdateDirection is the quantity step of updateCart.
type UpdateDirection string

const (
	Increment UpdateDirection = "plus"
	Decrement UpdateDirection = "minus"
)

type Address struct {
	ID       ID     `json:"id"`
	Address  string `json:"address"`
	Landmark string `json:"landmark"`
	Lat      Float  `json:"lat"`
	Lng      Float  `json:"lng"`
}

type AddressInput struct {
	Lat      float64
	Lng      float64
	Address  string
	Landmark string
}

type AddressesResponse struct {
	Envelope
	Addresses []Address `json:"data"`
}

type WalletResponse struct {
	Envelope
	Balance Amount `json:"balance"`
}

// OrderRequest is the place-order payload.
type OrderRequest struct {
	UserID        string `json:"user_id"`
	CartNo        string `json:"cart_no"`
	StoreID       string `json:"store_id"`
	PaymentMethod string `json:"payment"`
	Timing        string `json:"otype"`
	ScheduledAt   string `json:"stime,omitempty"`
	AddressID     string `json:"address_id,omitempty"`
	Pickup        int    `json:"pickup"`
	ECash         Amount `json:"ecash"`
	Total         Amount `json:"total"`
	Comment       string `json:"notes"`
	CardNumber    string `json:"card_no,omitempty"`
	CardExpMonth  string `json:"exp_month,omitempty"`
	CardExpYear   string `json:"exp_year,omitempty"`
	CardCVV       string `json:"cvv,omitempty"`
}

func (r OrderRequest) form() map[string]string {
	fields := map[string]string{
		"user_id":  r.UserID,
		"cart_no":  r.CartNo,
		"store_id": r.StoreID,
		"payment":  r.PaymentMethod,
		"otype":    r.Timing,
		"pickup":   boolFlag(r.Pickup == 1),
		"ecash":    r.ECash.String(),
		"total":    r.Total.String(),
		"notes":    r.Comment,
	}
	if r.ScheduledAt != "" {
		fields["stime"] = r.ScheduledAt
	}
	if r.AddressID != "" {
		fields["address_id"] = r.AddressID
	}
	return fields
}

type PlaceOrderResponse struct {
	Envelope
	OrderID ID `json:"order_id"`
}

type RiderRef struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Order is the read-only projection of a server order.
type Order struct {
	ID            ID         `json:"id"`
	Status        Int        `json:"status"`
	StoreID       ID         `json:"store_id"`
	StoreName     string     `json:"store_name"`
	StoreLat      Float      `json:"store_lat"`
	StoreLng      Float      `json:"store_lng"`
	DeliveryLat   Float      `json:"lat"`
	DeliveryLng   Float      `json:"lng"`
	Address       string     `json:"address"`
	Rider         *RiderRef  `json:"dboy"`
	RiderLat      *Float     `json:"dboy_lat"`
	RiderLng      *Float     `json:"dboy_lng"`
	PaymentMethod string     `json:"payment"`
	Total         Amount     `json:"total"`
	Payable       Amount     `json:"payable"`
	Items         []CartLine `json:"items"`
	CreatedAt     string     `json:"created_at"`
}

type OrderDetailResponse struct {
	Envelope
	Order *Order `json:"data"`
}

type RatingRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Stars   int    `json:"star"`
	Comment string `json:"comment"`
}

type RiderHome struct {
	Envelope
	Orders []Order `json:"data"`
	Online Int     `json:"status"`
}

type Earnings struct {
	Envelope
	Today  Amount  `json:"today"`
	Total  Amount  `json:"total"`
	Orders []Order `json:"data"`
}

type StoreDashboard struct {
	Envelope
	Orders []Order `json:"data"`
	Open   Int     `json:"open"`
}

type StoreItemsResponse struct {
	Envelope
	Items []Item `json:"data"`
}

type Plan struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Price Amount `json:"price"`
	Days  Int    `json:"days"`
}

type PlanResponse struct {
	Envelope
	Plans []Plan `json:"data"`
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// ambientQuery serializes the named ambient values, forwarding "null" for
// absent ones.
func ambientQuery(amb state.Ambient, fields ...state.Key) url.Values {
	values := url.Values{}
	for _, field := range fields {
		switch field {
		case state.KeyCartNo:
			values.Set(string(field), amb.CartNo)
		case state.KeyUserID:
			values.Set(string(field), amb.UserID)
		case state.KeyLangID:
			values.Set(string(field), amb.LangID)
		case state.KeyCityID:
			values.Set(string(field), amb.CityID)
		case state.KeyLat:
			values.Set(string(field), amb.Lat)
		case state.KeyLng:
			values.Set(string(field), amb.Lng)
		}
	}
	return values
}

func nullIfEmpty(v string) string {
	if v == "" {
		return state.NullLiteral
	}
	return v
}
