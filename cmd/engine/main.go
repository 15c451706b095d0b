// cmd/engine is the operational entrypoint for the depreciation engine: a
// background daemon that runs the monthly cron sweep, plus subcommands for
// the manual/operational triggers in the engine's API (acquisition,
// disposition, historical backfill, missing-journal repair, reversal).
// There is no HTTP surface here — that is explicitly out of scope; operators
// drive the engine through these subcommands the way cmd/migrate is driven
// through flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sethnicholsaz/herdledger/internal/database"
	"github.com/sethnicholsaz/herdledger/internal/ledger"
	"github.com/sethnicholsaz/herdledger/internal/scheduler"
	"github.com/sethnicholsaz/herdledger/internal/tenantcfg"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		log.Warn().Str("level", logLevel).Msg("invalid LOG_LEVEL, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable required")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	cfgRepo, err := newConfigRepo(ctx, dbURL, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire tenant configuration repository")
	}
	repo := ledger.NewPostgresRepository(pool.Pool)
	engine := ledger.NewEngine(repo, tenantcfg.CoaFor(cfgRepo), tenantcfg.SettingsFor(cfgRepo), tenantcfg.FiscalYearStartMonthFor(cfgRepo), time.Now)

	switch os.Args[1] {
	case "provision":
		runProvision(ctx, pool, cfgRepo)
	case "serve":
		runServe(ctx, cfgRepo, engine)
	case "acquire":
		runAcquire(ctx, engine)
	case "monthly":
		runMonthly(ctx, engine)
	case "dispose":
		runDispose(ctx, engine)
	case "catchup":
		runCatchup(ctx, engine)
	case "historical":
		runHistorical(ctx, engine)
	case "repair":
		runRepair(ctx, engine)
	case "reverse":
		runReverse(ctx, engine)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: engine <command> [flags]

commands:
  provision   create a new tenant's ledger schema and its config row
  serve       run the daily scheduled monthly-posting sweep
  acquire     post the acquisition journal entry for one cow
  monthly     post one tenant's monthly depreciation for a given month/year
  dispose     post a recorded disposition's journal entry
  catchup     post missed months for one cow through a given date
  historical  backfill a tenant's depreciation across a year range
  repair      sweep a tenant for cows missing depreciation journals
  reverse     reverse a posted journal entry`)
}

// runProvision creates a new tenant's dedicated ledger schema (via the
// create_ledger_schema stored function migrated in, see migrations/002) and
// its tenant_configs row, so the rest of the CLI has a schema to address.
func runProvision(ctx context.Context, pool *database.Pool, cfgRepo tenantcfg.Repository) {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "tenant ID (UUID)")
	schema := fs.String("schema", "", "schema name for this tenant")
	processingDay := fs.Int("processing-day", 1, "day of month the scheduler posts this tenant's depreciation")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"tenant": *tenantID, "schema": *schema})

	if _, err := pool.Exec(ctx, `SELECT create_ledger_schema($1)`, *schema); err != nil {
		log.Fatal().Err(err).Msg("failed to create ledger schema")
	}

	cfg := &tenantcfg.TenantConfig{
		TenantID:             *tenantID,
		SchemaName:           *schema,
		IsActive:             true,
		DepreciationSettings: tenantcfg.DefaultDepreciationSettings(),
		JournalProcessingDay: *processingDay,
	}
	if err := cfgRepo.Upsert(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to save tenant config")
	}

	log.Info().Str("tenant_id", *tenantID).Str("schema", *schema).Msg("tenant provisioned")
}

// runServe starts the cron-driven monthly sweep and blocks until SIGINT/SIGTERM.
func runServe(ctx context.Context, cfgRepo tenantcfg.Repository, engine *ledger.Engine) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	schedConfig := scheduler.DefaultConfig()
	if schedule := os.Getenv("DEPRECIATION_SCHEDULE"); schedule != "" {
		schedConfig.DailySchedule = schedule
	}
	if os.Getenv("SCHEDULER_ENABLED") == "false" {
		schedConfig.Enabled = false
	}

	s := scheduler.NewScheduler(schedulerRepoAdapter{cfgRepo}, engine, schedConfig)
	if err := s.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	doneCtx := s.Stop()
	<-doneCtx.Done()
}

// schedulerRepoAdapter adapts tenantcfg.Repository's ListProcessingDay (which
// returns []tenantcfg.TenantRef) onto scheduler.Repository (which expects
// []scheduler.TenantRef) -- the two are structurally identical but distinct
// types, since each package only knows the fields its own sweep needs.
type schedulerRepoAdapter struct {
	repo tenantcfg.Repository
}

func (a schedulerRepoAdapter) ListProcessingDay(ctx context.Context, day int) ([]scheduler.TenantRef, error) {
	refs, err := a.repo.ListProcessingDay(ctx, day)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.TenantRef, len(refs))
	for i, r := range refs {
		out[i] = scheduler.TenantRef{TenantID: r.TenantID, SchemaName: r.SchemaName}
	}
	return out, nil
}

func runAcquire(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("acquire", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	cowID := fs.String("cow", "", "cow ID")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "cow": *cowID})

	entryID, err := engine.PostAcquisition(ctx, *schema, *cowID)
	if err != nil {
		log.Fatal().Err(err).Msg("acquisition posting failed")
	}
	log.Info().Str("entry_id", entryID).Msg("acquisition posted")
}

func runMonthly(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("monthly", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	tenantID := fs.String("tenant", "", "tenant ID")
	month := fs.Int("month", 0, "month (1-12)")
	year := fs.Int("year", 0, "year")
	historical := fs.Bool("historical", false, "post in historical mode (dated to month end) rather than production mode")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "tenant": *tenantID})
	if *month < 1 || *month > 12 || *year == 0 {
		log.Fatal().Msg("-month (1-12) and -year are required")
	}

	mode := ledger.ModeProduction
	if *historical {
		mode = ledger.ModeHistorical
	}

	result, err := engine.PostMonthlyDepreciation(ctx, *schema, *tenantID, *month, *year, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("monthly depreciation posting failed")
	}
	log.Info().Int("cows_processed", result.CowsProcessed).Str("total", result.Total.String()).
		Bool("journal_created", result.JournalCreated).Msg("monthly depreciation posted")
}

func runDispose(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("dispose", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	dispositionID := fs.String("disposition", "", "disposition ID")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "disposition": *dispositionID})

	result, err := engine.PostDisposition(ctx, *schema, *dispositionID)
	if err != nil {
		log.Fatal().Err(err).Msg("disposition posting failed")
	}
	log.Info().Str("entry_id", result.EntryID).Str("gain_loss", result.GainLoss.String()).Msg("disposition posted")
}

func runCatchup(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("catchup", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	cowID := fs.String("cow", "", "cow ID")
	through := fs.String("through", "", "catch up through this date, YYYY-MM-DD (default: today)")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "cow": *cowID})

	throughDate := time.Now()
	if *through != "" {
		parsed, err := time.Parse("2006-01-02", *through)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -through date")
		}
		throughDate = parsed
	}

	count, err := engine.CatchUpCow(ctx, *schema, *cowID, throughDate)
	if err != nil {
		log.Fatal().Err(err).Msg("catch-up posting failed")
	}
	log.Info().Int("months_posted", count).Msg("catch-up complete")
}

func runHistorical(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("historical", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	tenantID := fs.String("tenant", "", "tenant ID")
	startYear := fs.Int("start-year", 0, "first year to backfill")
	endYear := fs.Int("end-year", 0, "last year to backfill (inclusive)")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "tenant": *tenantID})
	if *startYear == 0 || *endYear == 0 {
		log.Fatal().Msg("-start-year and -end-year are required")
	}

	summaries, err := engine.ProcessHistorical(ctx, *schema, *tenantID, *startYear, *endYear)
	if err != nil {
		log.Fatal().Err(err).Msg("historical backfill failed")
	}
	for _, s := range summaries {
		entry := log.Info().Int("year", s.Year).Int("months_posted", s.MonthsPosted).Int("cows_processed", s.CowsProcessed)
		if len(s.Errors) > 0 {
			entry = entry.Strs("errors", s.Errors)
		}
		entry.Msg("historical year processed")
	}
}

func runRepair(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	tenantID := fs.String("tenant", "", "tenant ID")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "tenant": *tenantID})

	report, err := engine.ProcessMissingJournals(ctx, *schema, *tenantID, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("missing-journal repair failed")
	}
	log.Info().Int("processed", report.Processed).Bool("cut_off", report.CutOff).
		Strs("errors", report.Errors).Msg("missing-journal repair complete")
	if report.CutOff {
		log.Warn().Msg("repair hit the per-sweep cow cap; re-run to continue")
	}
}

func runReverse(ctx context.Context, engine *ledger.Engine) {
	fs := flag.NewFlagSet("reverse", flag.ExitOnError)
	schema := fs.String("schema", "", "tenant schema name")
	entryID := fs.String("entry", "", "journal entry ID to reverse")
	reason := fs.String("reason", "", "reason for the reversal")
	fs.Parse(os.Args[2:])
	requireFlags(fs, map[string]string{"schema": *schema, "entry": *entryID, "reason": *reason})

	reversalID, err := engine.ReverseEntry(ctx, *schema, *entryID, *reason)
	if err != nil {
		log.Fatal().Err(err).Msg("entry reversal failed")
	}
	log.Info().Str("reversal_entry_id", reversalID).Msg("entry reversed")
}

func requireFlags(fs *flag.FlagSet, values map[string]string) {
	for name, value := range values {
		if value == "" {
			fmt.Fprintf(os.Stderr, "missing required -%s flag\n", name)
			fs.Usage()
			os.Exit(1)
		}
	}
}
