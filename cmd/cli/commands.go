package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/app"
	"github.com/and161185/kira-watch/internal/model"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseID(name, v string) (uuid.UUID, error) {
	if v == "" {
		return uuid.Nil, fmt.Errorf("need -%s", name)
	}
	id, err := uuid.FromString(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("-%s: %w", name, err)
	}
	return id, nil
}

// parseLocation returns nil when both coordinates are empty.
func parseLocation(lat, lng string) (*model.Location, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, errors.New("need both -lat and -lng")
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return nil, fmt.Errorf("bad -lat %q", lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil || ln < -180 || ln > 180 {
		return nil, fmt.Errorf("bad -lng %q", lng)
	}
	return &model.Location{Lat: la, Lng: ln}, nil
}

func (c *cli) timer(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fs := newFlags("timer " + args[0])
	user := fs.String("user", "", "user id")
	id := fs.String("id", "", "timer id")
	minutes := fs.Int("minutes", 0, "duration or extension in minutes")
	lat := fs.String("lat", "", "destination latitude")
	lng := fs.String("lng", "", "destination longitude")
	msg := fs.String("msg", "", "message")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}

	switch args[0] {
	case "start":
		dest, err := parseLocation(*lat, *lng)
		if err != nil {
			return err
		}
		t, err := a.Timers.Start(ctx, userID, *minutes, dest, *msg)
		if err != nil {
			return err
		}
		c.printJSON(t)
	case "stop":
		timerID, err := parseID("id", *id)
		if err != nil {
			return err
		}
		if err := a.Timers.Stop(ctx, userID, timerID); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "ok")
	case "extend":
		timerID, err := parseID("id", *id)
		if err != nil {
			return err
		}
		t, err := a.Timers.Extend(ctx, userID, timerID, *minutes)
		if err != nil {
			return err
		}
		c.printJSON(t)
	case "active":
		t, err := a.Timers.Active(ctx, userID)
		if err != nil {
			return err
		}
		c.printJSON(t)
	default:
		return errUsage
	}
	return nil
}

func (c *cli) sos(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fs := newFlags("sos " + args[0])
	user := fs.String("user", "", "user id")
	id := fs.String("id", "", "sos id")
	lat := fs.String("lat", "", "latitude")
	lng := fs.String("lng", "", "longitude")
	reason := fs.String("reason", "", "cancel reason")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}

	switch args[0] {
	case "trigger":
		loc, err := parseLocation(*lat, *lng)
		if err != nil {
			return err
		}
		if loc == nil {
			return errors.New("need -lat and -lng")
		}
		e, res, err := a.SOS.Trigger(ctx, userID, *loc)
		if err != nil {
			return err
		}
		c.printJSON(struct {
			Event  *model.SOSEvent
			Notify any
		}{e, res})
	case "cancel":
		sosID, err := parseID("id", *id)
		if err != nil {
			return err
		}
		if err := a.SOS.Cancel(ctx, userID, sosID, *reason); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "ok")
	default:
		return errUsage
	}
	return nil
}

func (c *cli) checkin(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fs := newFlags("checkin " + args[0])
	user := fs.String("user", "", "user id")
	lat := fs.String("lat", "", "latitude")
	lng := fs.String("lng", "", "longitude")
	status := fs.String("status", "safe", "status")
	mood := fs.String("mood", "", "mood")
	at := fs.String("time", "", "reminder time HH:MM")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}

	switch args[0] {
	case "record":
		loc, err := parseLocation(*lat, *lng)
		if err != nil {
			return err
		}
		if loc == nil {
			loc = &model.Location{}
		}
		ci, err := a.CheckIns.Record(ctx, userID, *loc, *status, *mood)
		if err != nil {
			return err
		}
		c.printJSON(ci)
	case "schedule":
		if err := a.CheckIns.ScheduleReminder(ctx, userID, *at); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "ok")
	default:
		return errUsage
	}
	return nil
}

func (c *cli) settings(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 || args[0] != "set" {
		return errUsage
	}
	fs := newFlags("settings set")
	user := fs.String("user", "", "user id")
	reminder := fs.String("reminder", "", "reminder time HH:MM")
	delay := fs.Int("delay", 0, "alert delay in minutes")
	enabled := fs.Bool("notifications", true, "notifications enabled")
	zone := fs.String("zone", "", "IANA time zone")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}

	// Only flags given on the command line become part of the update.
	var p model.SettingsPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reminder":
			p.ReminderTime = reminder
		case "delay":
			p.AlertDelayMinutes = delay
		case "notifications":
			p.NotificationsEnabled = enabled
		case "zone":
			p.Timezone = zone
		}
	})
	st, err := a.Users.UpdateSettings(ctx, userID, p)
	if err != nil {
		return err
	}
	c.printJSON(st)
	return nil
}

func (c *cli) user(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 || args[0] != "token" {
		return errUsage
	}
	fs := newFlags("user token")
	user := fs.String("user", "", "user id")
	token := fs.String("token", "", "push endpoint")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}
	if err := a.Users.RegisterDevice(ctx, userID, *token); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}
