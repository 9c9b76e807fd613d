package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/localdrop/internal/address"
	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/checkout"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/session"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/internal/tracking"
	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/db"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/maps"
	"github.com/angelmondragon/localdrop/pkg/metrics"
	"github.com/angelmondragon/localdrop/pkg/migrate"
	"github.com/angelmondragon/localdrop/pkg/redis"
)

// app is the fully wired client core for one process.
type app struct {
	cfg  *config.Config
	logg *logger.Logger

	store   *state.Store
	session *state.Session

	customers *gateway.Customer
	riders    *gateway.Rider
	stores    *gateway.Store

	cart      *cart.Engine
	checkout  *checkout.Orchestrator
	poller    *tracking.Poller
	addresses *address.Service

	customer    *session.CustomerSession
	rider       *session.RiderSession
	storeUser   *session.StoreSession
	presence    *session.RiderPresence
	pollMetrics *metrics.PollMetrics

	closers []func() error
}

type wireOptions struct {
	lat, lng float64
}

func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts wireOptions) (*app, error) {
	a := &app{cfg: cfg, logg: logg}

	backend, err := a.stateBackend(ctx)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.store, err = state.NewStore(backend, logg); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.session, err = state.NewSession(a.store); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	// The CLI is short-lived, so its series only matter for the debug dump.
	registry := prometheus.NewRegistry()
	gwMetrics := metrics.NewGatewayMetrics(registry)
	a.pollMetrics = metrics.NewPollMetrics(registry)

	gwOpts := []gateway.Option{
		gateway.WithHTTPClient(&http.Client{}),
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithLogger(logg),
		gateway.WithMetrics(gwMetrics),
	}
	if a.customers, err = gateway.NewCustomer(cfg.API.BaseURL, gwOpts...); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.riders, err = gateway.NewRider(cfg.API.BaseURL, gwOpts...); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.stores, err = gateway.NewStore(cfg.API.BaseURL, gwOpts...); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	if a.cart, err = cart.NewEngine(cart.Params{Gateway: a.customers, Session: a.session, Logger: logg}); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.checkout, err = checkout.New(checkout.Params{Gateway: a.customers, Cart: a.cart, Session: a.session, Logger: logg}); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.poller, err = tracking.NewPoller(tracking.PollerParams{
		Gateway:  a.customers,
		Session:  a.session,
		Logger:   logg,
		Metrics:  a.pollMetrics,
		Interval: cfg.API.PollInterval,
	}); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	var places address.Places
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey, maps.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}))
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		places = mapsClient
	}
	if a.addresses, err = address.NewService(address.ServiceParams{Places: places, Book: a.customers, Session: a.session, Logger: logg}); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	if a.presence, err = session.NewRiderPresence(session.PresenceParams{
		Gateway:    a.riders,
		Session:    a.session,
		Geolocator: fixedPosition{lat: opts.lat, lng: opts.lng},
		Logger:     logg,
		Metrics:    a.pollMetrics,
		Interval:   cfg.API.RiderPushInterval,
	}); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	if a.customer, err = session.NewCustomerSession(a.customers, a.store, a.cart, logg); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.rider, err = session.NewRiderSession(a.riders, a.store, a.presence, logg); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.storeUser, err = session.NewStoreSession(a.stores, a.store, logg); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	return a, nil
}

func (a *app) stateBackend(ctx context.Context) (state.Backend, error) {
	scope := a.cfg.State.KeyPrefix
	switch a.cfg.State.Normalized() {
	case config.StateBackendSQLite, config.StateBackendPostgres:
		dbCfg := a.cfg.DB
		dbCfg.Driver = a.cfg.State.Normalized()
		client, err := db.New(ctx, dbCfg, a.logg)
		if err != nil {
			return nil, fmt.Errorf("open state database: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		if err := migrate.EnsureStateSchema(ctx, client, a.logg); err != nil {
			return nil, err
		}
		return state.NewSQLBackend(client, scope)
	case config.StateBackendRedis:
		client, err := redis.New(ctx, a.cfg.Redis, a.logg)
		if err != nil {
			return nil, fmt.Errorf("open state redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return state.NewRedisBackend(client, scope)
	}
	return state.NewMemoryBackend(), nil
}

// Close stops background work and releases state connections.
func (a *app) Close() error {
	if a.presence != nil {
		a.presence.Close()
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

// fixedPosition reports the coordinates given on the command line.
type fixedPosition struct {
	lat, lng float64
}

func (f fixedPosition) Watch(_ context.Context, fn func(lat, lng float64)) (func(), error) {
	if f.lat == 0 && f.lng == 0 {
		return nil, fmt.Errorf("rider position unknown, pass -lat and -lng")
	}
	fn(f.lat, f.lng)
	return func() {}, nil
}
