// Command fwctl is the farewatch operations CLI.
//
// Usage:
//
//	fwctl migrate
//	fwctl sweep
//	fwctl check --id 42
//	fwctl destinations list
//	fwctl destinations add --origin YUL --destination CUN --departure 2026-12-15 --return 2026-12-22 --max-price 800
//	fwctl destinations pause --id 42
//	fwctl sms-test
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ygagnon/farewatch/internal/config"
	"github.com/ygagnon/farewatch/internal/db"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/notify"
	"github.com/ygagnon/farewatch/internal/store"
	"github.com/ygagnon/farewatch/internal/tracker"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "fwctl",
		Short: "farewatch operations CLI",
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(destinationsCmd())
	root.AddCommand(smsTestCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runWith loads config, opens the pool, and invokes fn with both.
func runWith(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func newChecker(cfg *config.Config, pool *db.Pool) (*tracker.Checker, error) {
	st := store.New(pool.Pool)
	flights := duffel.NewClient(cfg.DuffelBaseURL, cfg.DuffelAPIKey, cfg.Airline, cfg.DuffelRPM, logger)
	sender := notify.NewTwilioSender(
		cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		cfg.TwilioFromNumber, cfg.TwilioAlertNumber, logger)
	return tracker.New(st, flights, sender, tracker.Options{
		CheckTimes: cfg.CheckTimes,
		Delay:      cfg.CheckDelay,
		Currency:   config.Currency,
		Airline:    cfg.Airline,
	}, logger)
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := store.Migrate(ctx, pool.Pool); err != nil {
					return err
				}
				logger.Info("Schema applied")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// sweep / check commands
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one full price sweep over all active destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				checker, err := newChecker(cfg, pool)
				if err != nil {
					return err
				}
				start := time.Now()
				result := checker.CheckAll(ctx)
				logger.Info("Sweep finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				if result.Failed > 0 {
					return fmt.Errorf("%d destination(s) failed", result.Failed)
				}
				return nil
			})
		},
	}
}

func checkCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run an immediate price check for one destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				checker, err := newChecker(cfg, pool)
				if err != nil {
					return err
				}
				if err := checker.CheckOne(ctx, id); err != nil {
					return err
				}
				logger.Info("Check complete", "destination_id", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "destination id")
	cmd.MarkFlagRequired("id")
	return cmd
}

// --------------------------------------------------------------------------
// destinations commands
// --------------------------------------------------------------------------

func destinationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destinations",
		Short: "Manage tracked destinations",
	}
	cmd.AddCommand(destinationsListCmd())
	cmd.AddCommand(destinationsAddCmd())
	cmd.AddCommand(destinationsPauseCmd())
	return cmd
}

func destinationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracked destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				dests, err := store.New(pool.Pool).ListDestinations(ctx)
				if err != nil {
					return err
				}
				for _, d := range dests {
					latest := "-"
					if d.LatestPrice != nil {
						latest = fmt.Sprintf("%.0f$ %s", *d.LatestPrice, config.Currency)
					}
					status := "active"
					if !d.IsActive {
						status = "paused"
					}
					fmt.Printf("%4d  %s  %s  latest=%s  observations=%d  [%s]\n",
						d.ID, d.Route(), d.DepartureDate.Format("2006-01-02"),
						latest, d.PriceCount, status)
				}
				return nil
			})
		},
	}
}

func destinationsAddCmd() *cobra.Command {
	var (
		origin      string
		destination string
		departure   string
		returnDate  string
		maxPrice    float64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a destination watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				dep, err := time.Parse("2006-01-02", departure)
				if err != nil {
					return fmt.Errorf("parse --departure: %w", err)
				}
				n := store.NewDestination{
					Origin:        origin,
					Destination:   destination,
					DepartureDate: dep,
				}
				if returnDate != "" {
					ret, err := time.Parse("2006-01-02", returnDate)
					if err != nil {
						return fmt.Errorf("parse --return: %w", err)
					}
					n.ReturnDate = &ret
				}
				if cmd.Flags().Changed("max-price") {
					n.MaxPrice = &maxPrice
				}
				d, err := store.New(pool.Pool).CreateDestination(ctx, n)
				if err != nil {
					return err
				}
				logger.Info("Destination added", "id", d.ID, "route", d.Route())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin airport code")
	cmd.Flags().StringVar(&destination, "destination", "", "destination airport code")
	cmd.Flags().StringVar(&departure, "departure", "", "departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&returnDate, "return", "", "return date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum acceptable price")
	cmd.MarkFlagRequired("origin")
	cmd.MarkFlagRequired("destination")
	cmd.MarkFlagRequired("departure")
	return cmd
}

func destinationsPauseCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Deactivate a destination so sweeps skip it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				inactive := false
				_, err := store.New(pool.Pool).UpdateDestination(ctx, id,
					store.DestinationUpdate{IsActive: &inactive})
				if err != nil {
					return err
				}
				logger.Info("Destination paused", "id", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "destination id")
	cmd.MarkFlagRequired("id")
	return cmd
}

// --------------------------------------------------------------------------
// sms-test command
// --------------------------------------------------------------------------

func smsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sms-test",
		Short: "Send a test SMS to verify the alert channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sender := notify.NewTwilioSender(
				cfg.TwilioAccountSID, cfg.TwilioAuthToken,
				cfg.TwilioFromNumber, cfg.TwilioAlertNumber, logger)
			if err := sender.Send(context.Background(), notify.TestMessage()); err != nil {
				return err
			}
			logger.Info("Test SMS sent")
			return nil
		},
	}
}
