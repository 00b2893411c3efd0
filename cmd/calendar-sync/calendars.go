package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/hekate/calendar-sync/pkg/calendar"
	"github.com/hekate/calendar-sync/pkg/calendar/providers"
	"github.com/hekate/calendar-sync/pkg/config"
)

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars visible to every configured source and target",
		Flags: []cli.Flag{configFlag(), debugFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := setupLogger(cfg.Logging, c.Bool("debug"))

			return listCalendars(c.Context, os.Stdout, cfg, providers.NewFactory(), logger)
		},
	}
}

type endpoint struct {
	role     string
	name     string
	provider any
}

func listCalendars(ctx context.Context, out io.Writer, cfg *config.Config, factory *calendar.Factory, logger *slog.Logger) error {
	var endpoints []endpoint
	for _, src := range cfg.Sources {
		source, err := factory.CreateSource(src.Type, src.Spec(), logger)
		if err != nil {
			return fmt.Errorf("failed to create source %s: %w", src.Name, err)
		}
		defer source.Close()
		endpoints = append(endpoints, endpoint{role: "source", name: src.Name, provider: source})
	}
	for _, tgt := range cfg.Targets {
		target, err := factory.CreateTarget(tgt.Type, tgt.Spec(), logger)
		if err != nil {
			return fmt.Errorf("failed to create target %s: %w", tgt.Name, err)
		}
		defer target.Close()
		endpoints = append(endpoints, endpoint{role: "target", name: tgt.Name, provider: target})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tNAME\tCALENDAR ID\tCALENDAR\tACCESS\tPRIMARY")

	failed := 0
	for _, ep := range endpoints {
		lister, ok := ep.provider.(calendar.CalendarLister)
		if !ok {
			continue
		}

		calendars, err := lister.ListCalendars(ctx)
		if err != nil {
			logger.Error("Failed to list calendars", "role", ep.role, "name", ep.name, "error", err)
			failed++
			continue
		}
		for _, cal := range calendars {
			primary := ""
			if cal.Primary {
				primary = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", ep.role, ep.name, cal.ID, cal.Name, cal.AccessRole, primary)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("failed to list calendars for %d providers", failed)
	}
	return nil
}
