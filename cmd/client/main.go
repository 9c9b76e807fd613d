package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/joho/godotenv"
)

const usage = `usage: client [flags] <command> [args]

customer:
  login <email> <password>     sign in and cache the profile
  logout                       sign out and rotate the cart
  whoami                       show the cached identity
  home                         list nearby stores
  add <item_id> <price> [qty]  add an item to the cart
  cart                         reload and print the cart
  plus|minus <line_id>         step a cart line
  checkout [checkout flags]    price and place the staged cart
  track <order_id>             follow an order until it is cancelled or you press ctrl-c
  address list|suggest <q>|save <lat> <lng> <text> [landmark]

rider:
  rider login <email> <password>
  rider online|offline         toggle availability (online blocks while pushing location)
  rider logout

store:
  store login <email> <password>
  store logout
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "client"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	lat := flag.Float64("lat", 0, "current latitude")
	lng := flag.Float64("lng", 0, "current longitude")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "client",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "state_backend", cfg.State.Normalized())

	a, err := wire(ctx, cfg, logg, wireOptions{lat: *lat, lng: *lng})
	if err != nil {
		logg.Error(ctx, "failed to wire client", err)
		os.Exit(1)
	}

	if *lat != 0 || *lng != 0 {
		a.session.SetCoordinates(ctx, *lat, *lng)
	}

	runErr := a.run(ctx, os.Stdout, flag.Args())
	if err := a.Close(); err != nil {
		logg.WarnErr(ctx, "client.close", err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
