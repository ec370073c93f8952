package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
	"github.com/spf13/cobra"

	"github.com/CLEOsat-group/satellite-tracking/internal/config"
	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/internal/tle"
)

// options carries the command line flags shared by every subcommand.
type options struct {
	configPath  string
	workers     int
	date        string
	window      string
	metricsAddr string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "track",
		Short: "Predict optical visibility of LEO satellites from an observatory",
		Long: `track downloads the TLE file of a satellite constellation, propagates every
satellite across an observation window and reports the time steps at which
each one is above the horizon while the observatory sky is dark enough.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "track.yaml", "path to the run configuration")
	pf.StringVar(&opts.date, "date", "", "observation date YYYY-MM-DD, overrides time.year/month/day")
	pf.StringVar(&opts.window, "window", "", "named window (morning|evening), overrides time.window")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the catalogue and write the visibility reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRun(cmd, opts, func(ctx context.Context, p *pipeline) error {
				return p.run(ctx, cmd.OutOrStdout())
			})
		},
	}
	runCmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "scan workers, overrides run.workers and TRACK_WORKERS")
	runCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address while running")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the TLE file into the output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRun(cmd, opts, func(ctx context.Context, p *pipeline) error {
				src, err := p.obtainTLE(ctx)
				if err != nil {
					return err
				}
				w, err := p.outputWriter()
				if err != nil {
					return err
				}
				if err := w.WriteBytes(ctx, src.name, src.data); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(w.Dir(), src.name))
				return nil
			})
		},
	}

	var listAll bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the satellites a run would scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRun(cmd, opts, func(ctx context.Context, p *pipeline) error {
				src, err := p.obtainTLE(ctx)
				if err != nil {
					return err
				}
				cat, err := p.loadCatalogue(ctx, src.data)
				if err != nil {
					return err
				}
				names := cat.Match(tle.BrandPattern(p.cfg.Catalogue.Brand))
				if listAll {
					names = cat.Names()
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "print every catalogue entry, not only the configured brand")

	sitesCmd := &cobra.Command{
		Use:   "sites",
		Short: "Print the built-in observatory sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, key := range config.SiteKeys() {
				site, _ := config.LookupSite(key)
				fmt.Fprintf(out, "%-15s %-40s lat %v  lon %v W  %4.0f m  UTC%+g\n", key, site.Name,
					sexa.FmtAngle(unit.AngleFromDeg(site.Latitude)),
					sexa.FmtAngle(unit.AngleFromDeg(site.Longitude)),
					site.Altitude, -site.UTCOffset)
			}
			return nil
		},
	}

	windowCmd := &cobra.Command{
		Use:   "window",
		Short: "Print the observatory and the resolved UTC window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRun(cmd, opts, func(_ context.Context, p *pipeline) error {
				out := cmd.OutOrStdout()
				obs := p.observatory
				fmt.Fprintf(out, "observatory: %s\n", obs.Name)
				fmt.Fprintf(out, "latitude:    %v\n", sexa.FmtAngle(unit.AngleFromDeg(obs.Latitude)))
				fmt.Fprintf(out, "longitude:   %v\n", sexa.FmtAngle(unit.AngleFromDeg(obs.Longitude)))
				fmt.Fprintf(out, "altitude:    %.0f m\n", obs.Altitude)
				fmt.Fprintf(out, "window:      %s\n", p.spec.Label())
				fmt.Fprintf(out, "start:       %s\n", p.window.Start.Format(timeLayout))
				fmt.Fprintf(out, "end:         %s\n", p.window.End.Format(timeLayout))
				fmt.Fprintf(out, "cadence:     %s\n", p.window.Cadence)
				fmt.Fprintf(out, "steps:       %d\n", p.window.Steps())
				return nil
			})
		},
	}

	root.AddCommand(runCmd, fetchCmd, listCmd, windowCmd, sitesCmd)
	return root
}

// withRun loads the configuration, attaches a run logger and interrupt
// handling, then calls fn.
func withRun(cmd *cobra.Command, opts *options, fn func(context.Context, *pipeline) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())
	log = log.With(logging.String("command", cmd.Name()))

	p, err := newPipeline(opts, log)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		return err
	}
	if err := fn(ctx, p); err != nil {
		log.Error(ctx, "command failed", logging.Err(err))
		return err
	}
	return nil
}
