package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"match-collector/internal/collector"
	"match-collector/internal/config"
	"match-collector/internal/discord"
	"match-collector/internal/logger"
	"match-collector/internal/metrics"
	"match-collector/internal/riot"
	"match-collector/internal/storage"
)

func main() {
	if path := config.LoadEnv(); path != "" {
		fmt.Printf("Loaded .env from: %s\n", path)
	} else {
		fmt.Println("No .env file found, using environment variables")
	}

	configPath := flag.String("config", "", "YAML config file (optional)")
	tier := flag.String("tier", "", "Tier to collect (CHALLENGER..IRON or C, GM, M, D, E, P, G, S, B, I)")
	division := flag.String("division", "", "Division for paged tiers (I..IV or 1..4)")
	players := flag.Int("players", 0, "Identities to discover per unit")
	matches := flag.Int("matches", 0, "Match ids to request per identity (max 100)")
	split := flag.Bool("split", false, "Split the player budget across divisions I..IV when no division is given")
	all := flag.Bool("all", false, "Collect every tier and division from CHALLENGER down to IRON")
	puuidFile := flag.String("puuid-file", "", "Skip discovery and read identities from this file")
	pageDelay := flag.Duration("page-delay", 0, "Pause between league pages")
	listDelay := flag.Duration("list-delay", 0, "Pause between match-list requests")
	unitDelay := flag.Duration("unit-delay", 0, "Pause between units")
	concurrency := flag.Int("concurrency", 0, "Maximum in-flight upstream requests")
	sinks := flag.String("sinks", "", "Comma separated outputs: csv, parquet, postgres, sqlite, turso")
	wide := flag.Bool("wide", false, "Also write the wide timeline table")
	platform := flag.String("platform", "", "Platform routing value (e.g. kr, na1, euw1)")
	routing := flag.String("routing", "", "Regional routing value (e.g. asia, americas, europe)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	validateKey := flag.Bool("validate-key", true, "Check the API key before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tier":
			cfg.Collection.Tier = *tier
		case "division":
			cfg.Collection.Division = *division
		case "players":
			cfg.Collection.Players = *players
		case "matches":
			cfg.Collection.MatchesPerPlayer = *matches
		case "split":
			cfg.Collection.SplitDivisions = *split
		case "all":
			cfg.Collection.AllTiers = *all
		case "page-delay":
			cfg.Collection.PageDelay = *pageDelay
		case "list-delay":
			cfg.Collection.ListDelay = *listDelay
		case "unit-delay":
			cfg.Collection.UnitDelay = *unitDelay
		case "concurrency":
			cfg.Client.Concurrency = *concurrency
		case "sinks":
			cfg.Output.Sinks = config.ParseSinks(*sinks)
		case "wide":
			cfg.Output.Wide = *wide
		case "platform":
			cfg.Region.Platform = *platform
		case "routing":
			cfg.Region.Routing = *routing
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})

	if cfg.Collection.Tier == "" && !cfg.Collection.AllTiers && *puuidFile == "" {
		printUsage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := logger.GetLogger().Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	log := logger.Component("main")

	if err := run(cfg, *puuidFile, *validateKey); err != nil {
		log.WithError(err).Error("collection failed")
		if errors.Is(err, riot.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  collector -tier=GOLD -division=II [-players=100] [-matches=20]")
	fmt.Println("  collector -tier=DIAMOND -split [-players=400]")
	fmt.Println("  collector -all [-players=50] [-split]")
	fmt.Println("  collector -puuid-file=data/raw/GOLD_II_puuids.txt")
	fmt.Println()
	fmt.Println("The API key is read from RIOT_API_KEY (or RIOT-DEV-KEY) in the environment or .env")
	fmt.Println()
	fmt.Println("Outputs per unit:")
	fmt.Println("  {raw_dir}/{unit}_puuids.txt          - discovered identities")
	fmt.Println("  {processed_dir}/{unit}_matches.csv   - one row per participant")
	fmt.Println("  {processed_dir}/{unit}_timeline.csv  - one row per match minute")
	fmt.Println("  {archive_dir}/hot|warm|cold          - raw match + timeline documents")
}

func run(cfg *config.Config, puuidFile string, validateKey bool) error {
	log := logger.Component("main")

	apiKey, err := riot.APIKeyFromEnv()
	if err != nil {
		return err
	}

	var notifier *discord.WebhookClient
	if cfg.Discord.WebhookURL != "" {
		notifier = discord.NewWebhookClient(cfg.Discord.WebhookURL, apiKey)
	}

	ctx := collector.SetupSignalHandler(func(context.Context) {
		fmt.Println("\n[Shutdown] Gracefully shutting down...")
	})

	if validateKey {
		check, err := riot.NewKeyValidator(cfg.Region.Platform).Validate(ctx, apiKey)
		if err != nil {
			log.WithError(err).Warn("could not validate API key, continuing")
		} else if !check.Valid {
			if notifier != nil {
				if err := notifier.SendKeyRejectedNotification(ctx); err != nil {
					log.WithError(err).Warn("failed to send key rejected notification")
				}
			}
			return fmt.Errorf("API key %s was rejected: %w", riot.MaskKey(apiKey), riot.ErrConfiguration)
		} else {
			fmt.Printf("API key %s valid for platform %s\n", riot.MaskKey(apiKey), check.Platform)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		metrics.Serve(ctx, cfg.Metrics.Addr, reg)
	}

	gate := riot.NewGate(cfg.Client.Concurrency)
	client, err := riot.NewClient(apiKey, gate,
		riot.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		riot.WithRegion(cfg.Region.Platform, cfg.Region.Routing),
		riot.WithRetryAfterDefault(cfg.Client.RetryAfterDefault),
		riot.WithTransportBackoff(cfg.Client.TransportBackoff),
		riot.WithRequestBudget(cfg.Client.RequestsPerSecond, cfg.Client.RequestsPer2Min),
		riot.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	identities, err := storage.NewIdentityStore(cfg.Output.RawDir)
	if err != nil {
		return err
	}

	outputs, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer outputs.Close()

	deps := collector.Deps{
		Discovery:  collector.NewDiscovery(client, cfg.Collection.PageDelay),
		Indexer:    collector.NewIndexer(client, cfg.Collection.ListDelay),
		Fetcher:    collector.NewFetcher(client, cfg.FetcherConfig(), m),
		Sinks:      outputs.sinks,
		Identities: identities,
		Metrics:    m,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}

	var rotator *storage.FileRotator
	if cfg.Output.ArchiveDir != "" {
		rotator, err = storage.NewFileRotator(cfg.Output.ArchiveDir)
		if err != nil {
			return err
		}
		if cfg.Output.ColdDir != "" {
			if err := rotator.SetColdDir(cfg.Output.ColdDir); err != nil {
				return err
			}
		}
		deps.Archiver = rotator
		defer closeArchive(rotator)
	}

	orch := collector.NewOrchestrator(deps, collector.Options{
		MatchesPerPlayer: cfg.Collection.MatchesPerPlayer,
		UnitDelay:        cfg.Collection.UnitDelay,
	})

	fmt.Printf("Run %s: platform=%s routing=%s concurrency=%d sinks=%v\n",
		orch.RunID(), cfg.Region.Platform, cfg.Region.Routing, gate.Limit(), outputs.names())

	start := time.Now()
	var runErr error
	switch {
	case puuidFile != "":
		ids, err := storage.LoadIdentities(puuidFile)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d identities from %s\n", len(ids), puuidFile)
		_, runErr = orch.RunIdentities(ctx, storage.LabelFromIdentityFile(puuidFile), ids)
	default:
		plan := collector.FullMatrixPlan(cfg.Collection.Players, cfg.Collection.SplitDivisions)
		if !cfg.Collection.AllTiers {
			plan, err = collector.BuildPlan(cfg.Collection.Tier, cfg.Collection.Division,
				cfg.Collection.Players, cfg.Collection.SplitDivisions)
			if err != nil {
				return err
			}
		}
		fmt.Printf("Planned %d units\n", len(plan.Units))
		_, runErr = orch.Run(ctx, plan)
	}

	outputs.writeCounts(context.WithoutCancel(ctx), os.Stdout)

	if errors.Is(runErr, context.Canceled) {
		log.WithFields(logger.Fields{"elapsed": time.Since(start).String()}).Warn("run interrupted")
		return nil
	}
	return runErr
}

func closeArchive(rotator *storage.FileRotator) {
	log := logger.Component("main")
	if err := rotator.Close(); err != nil {
		log.WithError(err).Error("error closing archive")
		return
	}
	n, err := rotator.CompressWarm()
	if err != nil {
		log.WithError(err).Error("error compressing archive")
		return
	}
	if n > 0 {
		fmt.Printf("Compressed %d archive files to cold storage\n", n)
	}
}
