// Command bookctl books a studio session against a running API and issues
// development tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/availability"
	"github.com/Domenick1991/studiobooking/internal/client"
	"github.com/Domenick1991/studiobooking/internal/slotselect"
)

const usage = `usage:
  bookctl book  -api URL -token JWT -service ID -start RFC3339 [-end RFC3339 | -duration MIN] [flags]
  bookctl token -secret SECRET -sub USER_ID [-name NAME] [-email EMAIL] [-ttl DURATION]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "book":
		err = runBook(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("AUTH_JWT_SECRET"), "HMAC secret shared with the API")
	sub := fs.String("sub", "", "user id")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" || *sub == "" {
		return errors.New("-secret and -sub are required")
	}

	token, err := auth.NewVerifier(*secret).Issue(*sub, *name, *email, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runBook(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	apiURL := fs.String("api", "http://localhost:8080", "API base URL")
	token := fs.String("token", os.Getenv("BOOKCTL_TOKEN"), "bearer token")
	serviceID := fs.String("service", "", "service id")
	startRaw := fs.String("start", "", "session start, RFC3339")
	endRaw := fs.String("end", "", "session end, RFC3339")
	duration := fs.Int("duration", 0, "session length in minutes, instead of -end")
	songs := fs.Int("songs", 0, "number of songs")
	license := fs.String("license", "", "beat licence id")
	notes := fs.String("notes", "", "notes for the engineer")
	openHour := fs.Int("open", 9, "studio opening hour")
	closeHour := fs.Int("close", 2, "studio closing hour")
	tz := fs.String("tz", "UTC", "studio timezone")
	retries := fs.Int("retries", 2, "retries for a failed submission")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *serviceID == "" || *startRaw == "" {
		return errors.New("-service and -start are required")
	}
	start, err := time.Parse(time.RFC3339, *startRaw)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("-tz: %w", err)
	}

	api := client.New(*apiURL, *token)
	service, err := api.GetService(ctx, *serviceID)
	if err != nil {
		return fmt.Errorf("load service: %w", err)
	}

	// The calendar is read a day either side so overnight sessions see their neighbours.
	existing, err := api.Calendar(ctx, start.Add(-24*time.Hour), start.Add(48*time.Hour))
	if err != nil {
		return fmt.Errorf("load calendar: %w", err)
	}

	checker := availability.NewChecker(availability.StudioHours{OpenHour: *openHour, CloseHour: *closeHour, Location: loc})
	machine := slotselect.New(checker, service, api)
	machine.SetBookings(existing)

	if err := machine.PickStart(start); err != nil {
		return explain(machine, err)
	}
	switch {
	case machine.State() != slotselect.StateAwaitingEnd:
		// fixed-length service, the end is already derived
	case *endRaw != "":
		end, err := time.Parse(time.RFC3339, *endRaw)
		if err != nil {
			return fmt.Errorf("-end: %w", err)
		}
		if err := machine.PickEnd(end); err != nil {
			return explain(machine, err)
		}
	case *duration > 0:
		if err := machine.PickDuration(*duration); err != nil {
			return explain(machine, err)
		}
	default:
		return fmt.Errorf("%s sessions need -end or -duration", service.Type)
	}

	result, err := machine.Submit(ctx, slotselect.Extras{SongCount: *songs, BeatLicenseID: *license, Notes: *notes})
	for attempt := 0; err != nil && machine.State() == slotselect.StateFailed && attempt < *retries; attempt++ {
		fmt.Fprintf(os.Stderr, "submission failed (%v), retrying\n", err)
		result, err = machine.Retry(ctx)
	}
	if err != nil {
		return explain(machine, err)
	}

	fmt.Printf("booking %s created, status %s, total %d.%02d\n",
		result.Booking.ID, result.Booking.Status, result.Booking.TotalPrice/100, result.Booking.TotalPrice%100)
	if result.Intent != nil {
		fmt.Printf("payment intent %s\nclient secret %s\n", result.Intent.PaymentIntentID, result.Intent.ClientSecret)
	}
	return nil
}

func explain(m *slotselect.Machine, err error) error {
	if reason := m.Reason(); reason != "" {
		return fmt.Errorf("%w (%s)", err, reason)
	}
	return err
}
