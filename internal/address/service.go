package address

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/maps"
)

const (
	msgNeedLogin    = "Please log in to save an address"
	msgNeedAddress  = "Please enter the address"
	msgNeedLocation = "Please pick the address location on the map"
	msgSaveFailed   = "Could not save this address, please try again"
	msgSaved        = "Address saved"
)

type Result = cart.Result

// Places is the autocomplete and place lookup provider.
type Places interface {
	Suggest(ctx context.Context, req maps.SuggestRequest) ([]maps.Suggestion, error)
	Resolve(ctx context.Context, placeID, sessionToken string) (*maps.Place, error)
}

// Book is the customer address book on the marketplace.
type Book interface {
	Addresses(ctx context.Context, userID string) ([]gateway.Address, error)
	SaveAddress(ctx context.Context, userID string, in gateway.AddressInput) (*gateway.Envelope, error)
}

type ServiceParams struct {
	Places  Places
	Book    Book
	Session *state.Session
	Logger  *logger.Logger
}

type Service struct {
	places  Places
	book    Book
	session *state.Session
	logg    *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Book == nil {
		return nil, errors.New("address book gateway is required")
	}
	if p.Session == nil {
		return nil, errors.New("session is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Service{places: p.Places, book: p.Book, session: p.Session, logg: p.Logger}, nil
}

// Suggestion is an autocomplete candidate.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Candidate is a resolved place ready to be saved or used as the current location.
type Candidate struct {
	PlaceID  string  `json:"place_id"`
	Address  string  `json:"address"`
	Locality string  `json:"locality,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Draft is a new saved address. Saved addresses are never edited.
type Draft struct {
	Address  string
	Landmark string
	Lat      float64
	Lng      float64
}

// Suggest returns candidates biased to the last known position.
func (s *Service) Suggest(ctx context.Context, query, language, sessionToken string) ([]Suggestion, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}

	req := maps.SuggestRequest{Input: query, Language: strings.TrimSpace(language), SessionToken: sessionToken}
	amb := s.session.Snapshot(ctx)
	if amb.HasCoordinates() {
		lat, okLat := state.ParseCoordinate(amb.Lat)
		lng, okLng := state.ParseCoordinate(amb.Lng)
		if okLat && okLng {
			req.Near = &maps.LatLng{Latitude: lat, Longitude: lng}
		}
	}

	resp, err := s.places.Suggest(ctx, req)
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(resp))
	for _, item := range resp {
		description := item.Primary
		if item.Secondary != "" {
			description += ", " + item.Secondary
		}
		suggestions = append(suggestions, Suggestion{PlaceID: item.PlaceID, Description: description})
	}
	return suggestions, nil
}

func (s *Service) Resolve(ctx context.Context, placeID, sessionToken string) (*Candidate, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client unavailable")
	}
	if strings.TrimSpace(placeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place_id is required")
	}
	place, err := s.places.Resolve(ctx, placeID, sessionToken)
	if err != nil {
		return nil, err
	}
	return candidateFromPlace(place)
}

func candidateFromPlace(place *maps.Place) (*Candidate, error) {
	if place == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place details missing")
	}
	if place.Location.Latitude == 0 && place.Location.Longitude == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place location missing")
	}
	addr := strings.TrimSpace(place.FormattedAddress)
	if addr == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "formatted address missing")
	}
	return &Candidate{
		PlaceID:  place.PlaceID,
		Address:  addr,
		Locality: place.Locality,
		Lat:      place.Location.Latitude,
		Lng:      place.Location.Longitude,
	}, nil
}

// UseCurrent makes a candidate the ambient position for later calls.
func (s *Service) UseCurrent(ctx context.Context, c Candidate) {
	s.session.SetCoordinates(ctx, c.Lat, c.Lng)
	s.session.Store().Set(ctx, state.KeyAddress, c.Address)
}

func (s *Service) List(ctx context.Context) ([]gateway.Address, error) {
	userID, ok := s.session.Store().Get(ctx, state.KeyUserID)
	if !ok || userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgNeedLogin)
	}
	return s.book.Addresses(ctx, userID)
}

// Save validates locally before anything is sent.
func (s *Service) Save(ctx context.Context, d Draft) Result {
	userID, ok := s.session.Store().Get(ctx, state.KeyUserID)
	if !ok || userID == "" {
		return Result{Message: msgNeedLogin}
	}
	d.Address = strings.TrimSpace(d.Address)
	if d.Address == "" {
		return Result{Message: msgNeedAddress}
	}
	if !validCoordinate(d.Lat, d.Lng) {
		return Result{Message: msgNeedLocation}
	}

	ctx = s.logg.WithUserID(ctx, userID)
	resp, err := s.book.SaveAddress(ctx, userID, gateway.AddressInput{
		Lat:      d.Lat,
		Lng:      d.Lng,
		Address:  d.Address,
		Landmark: strings.TrimSpace(d.Landmark),
	})
	if err != nil {
		return Result{Message: gateway.Normalize(err).Message}
	}
	if !resp.OK() {
		return Result{Message: resp.Failure(msgSaveFailed)}
	}
	s.logg.Info(ctx, "address.saved")
	return Result{Success: true, Message: msgSaved}
}

func validCoordinate(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
