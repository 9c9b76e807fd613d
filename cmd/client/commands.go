package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/angelmondragon/localdrop/internal/address"
	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/checkout"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/tracking"
)

var errUsage = errors.New("invalid arguments, run with -h for usage")

func (a *app) run(ctx context.Context, out io.Writer, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		if len(rest) != 2 {
			return errUsage
		}
		return report(out, a.customer.Login(ctx, gateway.LoginRequest{Identifier: rest[0], Password: rest[1]}))
	case "logout":
		a.customer.Logout(ctx)
		fmt.Fprintln(out, "signed out")
		return nil
	case "whoami":
		return a.whoami(ctx, out)
	case "home":
		return a.home(ctx, out)
	case "add":
		return a.add(ctx, out, rest)
	case "cart":
		return a.showCart(ctx, out)
	case "plus", "minus":
		if len(rest) != 1 {
			return errUsage
		}
		dir := gateway.Increment
		if cmd == "minus" {
			dir = gateway.Decrement
		}
		if err := report(out, a.cart.UpdateLine(ctx, rest[0], dir)); err != nil {
			return err
		}
		printCart(out, a.cart.View(ctx))
		return nil
	case "checkout":
		return a.placeOrder(ctx, out, rest)
	case "track":
		if len(rest) != 1 {
			return errUsage
		}
		return a.track(ctx, out, rest[0])
	case "address":
		return a.address(ctx, out, rest)
	case "rider":
		return a.riderCommand(ctx, out, rest)
	case "store":
		return a.storeCommand(ctx, out, rest)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func report(out io.Writer, res cart.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	if res.Message != "" {
		fmt.Fprintln(out, res.Message)
	} else {
		fmt.Fprintln(out, "ok")
	}
	return nil
}

func (a *app) whoami(ctx context.Context, out io.Writer) error {
	if id := a.customer.LoadUser(ctx); id.Authenticated {
		fmt.Fprintf(out, "customer %s (%s)\n", id.ID, id.Profile.Email)
	}
	if id := a.rider.LoadUser(ctx); id.Authenticated {
		fmt.Fprintf(out, "rider %s online=%t\n", id.ID, a.presence.Online())
	}
	if id := a.storeUser.LoadUser(ctx); id.Authenticated {
		fmt.Fprintf(out, "store user %s\n", id.ID)
	}
	return nil
}

func (a *app) home(ctx context.Context, out io.Writer) error {
	page, err := a.customers.Homepage(ctx, a.session.Snapshot(ctx))
	if err != nil {
		return err
	}
	if !page.OK() {
		return errors.New(page.Failure("could not load stores"))
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTORE\tOPEN\tETA")
	for _, s := range page.Stores {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.Name, s.Open == 1, s.DeliveryTime)
	}
	return tw.Flush()
}

func (a *app) add(ctx context.Context, out io.Writer, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	qty := 1
	if len(args) == 3 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			return fmt.Errorf("quantity must be a positive number")
		}
		qty = n
	}
	a.cart.Initialize(ctx)
	if err := report(out, a.cart.Add(ctx, gateway.AddToCartRequest{ItemID: args[0], Price: args[1], Qty: qty})); err != nil {
		return err
	}
	printCart(out, a.cart.View(ctx))
	return nil
}

func (a *app) showCart(ctx context.Context, out io.Writer) error {
	a.cart.Initialize(ctx)
	if res := a.cart.Load(ctx); !res.Success {
		return errors.New(res.Message)
	}
	printCart(out, a.cart.View(ctx))
	return nil
}

func printCart(out io.Writer, v cart.View) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cart %s (%d items)\n", v.Handle, v.Count)
	for _, line := range v.Lines {
		fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n", line.ID, line.Name, line.Qty, line.Price.StringFixed(2))
	}
	if s := v.Summary; s != nil {
		fmt.Fprintf(tw, "\titems\t\t%s\n", s.ItemTotal.StringFixed(2))
		fmt.Fprintf(tw, "\tdelivery\t\t%s\n", s.DeliveryCharge.StringFixed(2))
		fmt.Fprintf(tw, "\tdiscount\t\t-%s\n", s.Discount.StringFixed(2))
		fmt.Fprintf(tw, "\t%s\t\t%s\n", taxLabel(s.TaxName), s.TaxValue.StringFixed(2))
		fmt.Fprintf(tw, "\ttotal\t\t%s %s\n", s.Total.StringFixed(2), s.Currency)
	}
	tw.Flush()
}

func taxLabel(name string) string {
	if name == "" {
		return "tax"
	}
	return name
}

func (a *app) placeOrder(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(out)
	pay := fs.String("pay", string(checkout.PaymentCash), "payment method: cash|card|qr")
	addressID := fs.String("address", "", "saved address id for delivery")
	pickup := fs.Bool("pickup", false, "collect from the store")
	at := fs.String("at", "", "schedule for this time instead of now")
	ecash := fs.Bool("ecash", false, "apply wallet balance")
	comment := fs.String("comment", "", "note for the store")
	proof := fs.String("proof", "", "payment proof image for qr")
	cardNo := fs.String("card", "", "card number")
	exp := fs.String("exp", "", "card expiry MM/YY")
	cvv := fs.String("cvv", "", "card cvv")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only a staged cart can be checked out.
	a.cart.Initialize(ctx)
	if res := a.cart.Load(ctx); !res.Success {
		return errors.New(res.Message)
	}
	if err := a.cart.StageCheckout(ctx); err != nil {
		return err
	}
	if res := a.checkout.Prepare(ctx); !res.Success {
		return errors.New(res.Message)
	}

	method, err := checkout.ParsePaymentMethod(*pay)
	if err != nil {
		return err
	}
	if err := a.checkout.SetPaymentMethod(method); err != nil {
		return err
	}
	switch method {
	case checkout.PaymentCard:
		month, year, _ := strings.Cut(*exp, "/")
		a.checkout.SetCard(checkout.Card{Number: *cardNo, ExpMonth: month, ExpYear: year, CVV: *cvv})
	case checkout.PaymentQR:
		if *proof != "" {
			data, err := os.ReadFile(*proof)
			if err != nil {
				return fmt.Errorf("reading proof: %w", err)
			}
			if err := a.checkout.AttachProof(filepath.Base(*proof), data); err != nil {
				return err
			}
		}
	}

	if *pickup {
		a.checkout.SetFulfilment(checkout.FulfilmentPickup)
	} else if *addressID != "" {
		if res := a.checkout.SelectAddress(ctx, *addressID); !res.Success {
			return errors.New(res.Message)
		}
	}
	if *at != "" {
		a.checkout.SetTiming(checkout.TimingSchedule, *at)
	}
	a.checkout.SetComment(*comment)
	totals := a.checkout.SetECash(*ecash)

	fmt.Fprintf(out, "total %s, wallet %s, payable %s\n",
		totals.Total.StringFixed(2), totals.ECash.StringFixed(2), totals.Payable.StringFixed(2))
	if ok, reason := a.checkout.CanSubmit(); !ok {
		if len(a.checkout.Addresses()) > 0 && *addressID == "" && !*pickup {
			for _, addr := range a.checkout.Addresses() {
				fmt.Fprintf(out, "  address %s: %s\n", addr.ID, addr.Address)
			}
		}
		return errors.New(reason)
	}

	res := a.checkout.Submit(ctx)
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintf(out, "order %s placed\n", res.OrderID)
	return nil
}

type cliNavigator struct {
	out    io.Writer
	cancel context.CancelFunc
}

func (n cliNavigator) Home(notice string) {
	fmt.Fprintln(n.out, notice)
	n.cancel()
}

func (a *app) track(ctx context.Context, out io.Writer, orderID string) error {
	ctx, cancel := context.WithCancel(a.logg.WithOrderID(ctx, orderID))
	defer cancel()

	view, err := tracking.NewView(tracking.ViewParams{
		Source:    a.poller,
		Navigator: cliNavigator{out: out, cancel: cancel},
		Logger:    a.logg,
		OnFrame: func(f tracking.Frame) {
			line := fmt.Sprintf("%s  %s", orderID, f.State.Status)
			if f.State.RiderMarker != nil {
				line += fmt.Sprintf("  rider at %.5f,%.5f", f.State.RiderMarker.Lat, f.State.RiderMarker.Lng)
			}
			if n := len(f.State.Route); n > 0 {
				line += fmt.Sprintf("  route %d stops", n)
			}
			fmt.Fprintln(out, line)
		},
	})
	if err != nil {
		return err
	}
	view.Open(ctx, orderID)
	defer view.Close()

	<-ctx.Done()
	return nil
}

func (a *app) address(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		list, err := a.addresses.List(ctx)
		if err != nil {
			return err
		}
		for _, addr := range list {
			fmt.Fprintf(out, "%s\t%s\t%s\n", addr.ID, addr.Address, addr.Landmark)
		}
		return nil
	case "suggest":
		if len(args) < 2 {
			return errUsage
		}
		suggestions, err := a.addresses.Suggest(ctx, strings.Join(args[1:], " "), "", "")
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			fmt.Fprintf(out, "%s\t%s\n", s.PlaceID, s.Description)
		}
		return nil
	case "save":
		if len(args) < 4 || len(args) > 5 {
			return errUsage
		}
		lat, latErr := strconv.ParseFloat(args[1], 64)
		lng, lngErr := strconv.ParseFloat(args[2], 64)
		if latErr != nil || lngErr != nil {
			return fmt.Errorf("coordinates must be numeric")
		}
		draft := address.Draft{Address: args[3], Lat: lat, Lng: lng}
		if len(args) == 5 {
			draft.Landmark = args[4]
		}
		return report(out, a.addresses.Save(ctx, draft))
	}
	return errUsage
}

func (a *app) riderCommand(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	ctx = a.logg.WithRole(ctx, "rider")
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errUsage
		}
		return report(out, a.rider.Login(ctx, gateway.LoginRequest{Identifier: args[1], Password: args[2]}))
	case "logout":
		a.rider.LoadUser(ctx)
		a.rider.Logout(ctx)
		fmt.Fprintln(out, "signed out")
		return nil
	case "offline":
		return report(out, a.presence.SetOnline(ctx, false))
	case "online":
		if err := report(out, a.presence.SetOnline(ctx, true)); err != nil {
			return err
		}
		fmt.Fprintln(out, "pushing location, ctrl-c to stop")
		<-ctx.Done()
		return nil
	}
	return errUsage
}

func (a *app) storeCommand(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	ctx = a.logg.WithRole(ctx, "store")
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errUsage
		}
		return report(out, a.storeUser.Login(ctx, gateway.LoginRequest{Identifier: args[1], Password: args[2]}))
	case "logout":
		a.storeUser.Logout(ctx)
		fmt.Fprintln(out, "signed out")
		return nil
	}
	return errUsage
}
