package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"strava-effort/internal/analysis"
	"strava-effort/internal/apperr"
	"strava-effort/internal/auth"
	"strava-effort/internal/config"
	"strava-effort/internal/logging"
	"strava-effort/internal/service"
	"strava-effort/internal/store"
	"strava-effort/internal/strava"
)

const usage = `usage: strava-effort [command]

commands:
  sync                 fetch activities and backfill streams (default)
  effort <id>          relative effort and zone distribution for an activity
  compare <id> [month|year]
                       rank an activity against its month or year
  athlete <birth-year> [prefix]
                       set the birth year used for heart-rate zones
  export <file>        write the cache to a JSON file
  import <file>        replace the cache from a JSON file
  stats                show cache row counts and size
  reset                destroy and recreate the cache
  logout               forget stored credentials`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if apperr.IsAuth(err) {
			fmt.Fprintln(os.Stderr, "Run `strava-effort logout` and sign in again.")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.yaml\n\n", configDir)
		fmt.Println("You need to add your Strava API credentials.")
		fmt.Println("Get them from: https://www.strava.com/settings/api")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.yaml\n", configDir)
		return nil
	}

	logger := logging.New(cfg.Log, nil)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer st.Close()

	manager := auth.NewManager(st, auth.Options{Logger: logger})
	client := strava.NewClient(manager, nil, cfg.Strava.BaseURL)
	svc := service.NewSyncService(client, manager, st, service.Options{
		BackfillDelay: cfg.Sync.BackfillDelay,
		Logger:        logger,
	})

	cmd := "sync"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "sync":
		if err := ensureAuthenticated(ctx, manager, cfg); err != nil {
			return err
		}
		return syncAll(ctx, svc, st, cfg.Sync.PageSize, logger)
	case "effort":
		id, err := activityID(args)
		if err != nil {
			return err
		}
		return printEffort(ctx, svc, id)
	case "compare":
		id, err := activityID(args)
		if err != nil {
			return err
		}
		period := analysis.PeriodMonth
		if len(args) > 1 {
			period = analysis.Period(args[1])
		}
		return printComparison(ctx, svc, id, period)
	case "athlete":
		birthYear, prefix, err := athleteSettings(args)
		if err != nil {
			return err
		}
		return setAthlete(ctx, svc, manager, cfg, birthYear, prefix)
	case "export":
		if len(args) < 1 {
			return errors.New("export needs a file name")
		}
		data, err := svc.Export(ctx)
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], data, 0600)
	case "import":
		if len(args) < 1 {
			return errors.New("import needs a file name")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return svc.Import(ctx, data)
	case "stats":
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		for _, t := range store.Tables {
			fmt.Printf("%-18s %d\n", t, stats.Counts[t])
		}
		if stats.ApproxSizeBytes < 0 {
			fmt.Println("size               unknown")
		} else {
			fmt.Printf("size               %d bytes\n", stats.ApproxSizeBytes)
		}
		return nil
	case "reset":
		return svc.Reset(ctx)
	case "logout":
		return svc.Logout(ctx)
	default:
		fmt.Println(usage)
		return nil
	}
}

func ensureAuthenticated(ctx context.Context, manager *auth.Manager, cfg *config.Config) error {
	if manager.HasCredentials(ctx) {
		return nil
	}

	fmt.Println("No authentication found. Starting OAuth flow...")
	creds, err := auth.Authenticate(ctx, manager, auth.CallbackConfig{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		Prompt:       os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("authentication: %w", err)
	}

	fmt.Printf("\nSuccessfully authenticated as athlete %d!\n", creds.AthleteID)
	return nil
}

// syncAll pages through every activity, then backfills details and streams
// for the activities whose cached detail is incomplete.
func syncAll(ctx context.Context, svc *service.SyncService, st *store.Store, pageSize int, logger zerolog.Logger) error {
	if _, err := svc.RefreshAthlete(ctx, true); err != nil {
		return fmt.Errorf("refreshing athlete: %w", err)
	}

	for page := 1; ; page++ {
		activities, err := svc.ListActivities(ctx, page, pageSize)
		if err != nil {
			return err
		}
		fmt.Printf("\rFetched page %d (%d activities)", page, len(activities))
		if len(activities) < pageSize {
			break
		}
	}
	fmt.Println()

	cached, err := svc.GetCachedActivities(ctx)
	if err != nil {
		return err
	}

	var pending []store.Activity
	for _, a := range cached {
		d, err := st.GetDetail(ctx, a.ID)
		if err == nil && d.Complete() {
			continue
		}
		pending = append(pending, a)
	}
	if len(pending) == 0 {
		fmt.Println("All activity streams are cached.")
		return nil
	}

	res, err := svc.FetchAllStreamsForSet(ctx, pending, func(current, total int) {
		fmt.Printf("\rFetching streams %d/%d", current, total)
	})
	fmt.Println()
	for _, e := range res.Errors {
		logger.Warn().Int64("activity_id", e.ActivityID).Err(e.Err).Msg("activity skipped")
	}
	fmt.Printf("Done: %d fetched, %d failed, %d without streams\n", res.SuccessCount, res.ErrorCount, res.StreamsMissing)
	return err
}

func printEffort(ctx context.Context, svc *service.SyncService, id int64) error {
	effort, err := svc.RelativeEffort(ctx, id)
	if err != nil {
		return err
	}
	if effort == nil {
		fmt.Println("No heart-rate data or birth year; relative effort unavailable.")
		return nil
	}
	fmt.Printf("Relative effort: %d points, score %d, intensity %.2f\n",
		effort.TotalEffortPoints, effort.RelativeScore, effort.IntensityFactor)

	dist, err := svc.ZoneDistribution(ctx, id)
	if err != nil {
		return err
	}
	for _, z := range dist {
		fmt.Printf("  Zone %d  %6.1f min  %5.1f%%\n", z.Zone, z.Minutes, z.Percent)
	}
	return nil
}

func printComparison(ctx context.Context, svc *service.SyncService, id int64, period analysis.Period) error {
	cmp, err := svc.CompareCohort(ctx, id, period)
	if err != nil {
		return err
	}
	if cmp == nil {
		fmt.Println("No heart-rate data or birth year; comparison unavailable.")
		return nil
	}

	for _, e := range cmp.Entries {
		marker := " "
		if e.IsSubject {
			marker = "*"
		}
		fmt.Printf("%s %s  %-30s %5d\n", marker, e.StartDateLocal.Format("2006-01-02"), e.Name, e.Effort.TotalEffortPoints)
	}
	fmt.Printf("Rank %d of %d", cmp.Rank, cmp.Total)
	if cmp.Percentile != nil {
		fmt.Printf(" (percentile %d)", *cmp.Percentile)
	}
	fmt.Println()
	return nil
}

// setAthlete stores the local athlete settings, fetching the profile first
// when none is cached yet.
func setAthlete(ctx context.Context, svc *service.SyncService, manager *auth.Manager, cfg *config.Config, birthYear int, prefix string) error {
	if _, err := svc.GetAthlete(ctx); errors.Is(err, store.ErrAthleteNotFound) {
		if err := ensureAuthenticated(ctx, manager, cfg); err != nil {
			return err
		}
		if _, err := svc.RefreshAthlete(ctx, false); err != nil {
			return fmt.Errorf("fetching athlete: %w", err)
		}
	} else if err != nil {
		return err
	}

	if err := svc.UpdateAthleteSettings(ctx, &birthYear, prefix); err != nil {
		return err
	}
	fmt.Printf("Birth year set to %d (max HR %.0f)\n", birthYear, analysis.MaxHeartRate(birthYear))
	return nil
}

func athleteSettings(args []string) (int, string, error) {
	if len(args) < 1 {
		return 0, "", errors.New("missing birth year")
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid birth year %q: %w", args[0], err)
	}
	var prefix string
	if len(args) > 1 {
		prefix = strings.Join(args[1:], " ")
	}
	return year, prefix, nil
}

func activityID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, errors.New("missing activity id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid activity id %q: %w", args[0], err)
	}
	return id, nil
}
