// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Bot mode: gateway connection, automatic scans, public scans and moderator review
//   - Stats mode: one authenticated classifier stats request printed as JSON
//   - Cases mode: a listing of the stored flagged cases
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/media-guard-bot/internal/core/classifier"
	"github.com/lueurxax/media-guard-bot/internal/core/links"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
	"github.com/lueurxax/media-guard-bot/internal/discord"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
	"github.com/lueurxax/media-guard-bot/internal/platform/worker"
	"github.com/lueurxax/media-guard-bot/internal/process/dedup"
	"github.com/lueurxax/media-guard-bot/internal/process/scan"
	"github.com/lueurxax/media-guard-bot/internal/review"
	db "github.com/lueurxax/media-guard-bot/internal/storage"
)

const (
	botTokenPrefix     = "Bot "
	maintenanceWorker  = "maintenance"
	readyClassifier    = "classifier"
	readyCaseStore     = "case_store"
	readyDedup         = "dedup"
	logFieldBackend    = "backend"
	backendFile        = "file"
	backendPostgres    = "postgres"
	backendMemory      = "memory"
	backendRedis       = "redis"
	caseListTimeFormat = time.RFC3339
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg    *config.Config
	logger *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, logger *zerolog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// RunBot connects to the gateway and runs the moderation pipeline together with
// the health server and the maintenance worker until ctx is canceled.
func (a *App) RunBot(ctx context.Context) error {
	a.logger.Info().Msg("Starting bot mode")

	communities, err := config.LoadCommunities(a.cfg.CommunityConfigPath)
	if err != nil {
		return fmt.Errorf("load community config: %w", err)
	}

	store, closeStore, err := a.openCaseStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, err := a.newDedupCache()
	if err != nil {
		return err
	}
	defer cache.shutdown()

	classifierClient := a.newClassifier()
	if !classifierClient.Enabled() {
		a.logger.Warn().Msg("classifier base url not configured, scans are disabled")
	}

	session, err := discordgo.New(botTokenPrefix + a.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	platform := discord.NewPlatform(session)

	scanner := scan.New(
		scan.NewCollector(platform, a.logger),
		a.newDownloader(),
		classifierClient,
		cache.store,
		a.cfg.ScanConcurrency,
		a.logger,
	)

	workflow := review.New(platform, store, a.logger)
	bot := discord.NewBot(session, platform, scanner, workflow, communities, a.logger)

	health := observability.NewServer(a.cfg.HealthPort, readyChecks(classifierClient, store, cache), a.logger)

	tasks := maintenanceTasks(a.cfg.MaintenanceInterval, cache.sweeper, classifierClient, store.CaseStore)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return health.Start(groupCtx)
	})

	group.Go(func() error {
		return worker.Loop(groupCtx, worker.Config{
			Name:       maintenanceWorker,
			Tasks:      tasks,
			RunOnStart: true,
			Logger:     a.logger,
		})
	})

	group.Go(func() error {
		if err := bot.Run(groupCtx); err != nil {
			return fmt.Errorf("bot run: %w", err)
		}

		return nil
	})

	return group.Wait()
}

// RunStats performs one classifier stats request and writes the indented payload to w.
func (a *App) RunStats(ctx context.Context, w io.Writer) error {
	client := a.newClassifier()

	raw, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("classifier stats: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("format stats: %w", err)
	}

	out.WriteByte('\n')

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	return nil
}

// RunCases writes one row per stored flagged case to w, oldest first.
func (a *App) RunCases(ctx context.Context, w io.Writer) error {
	store, closeStore, err := a.openCaseStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cases, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "MESSAGE\tGUILD\tACTION\tSTATUS\tRISK\tTIER\tREVIEW\tUPDATED") //nolint:errcheck // flushed below

	for _, c := range cases {
		//nolint:errcheck // flushed below
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\t%s\n",
			c.MessageID,
			c.GuildID,
			c.Action,
			c.Status,
			c.Risk,
			c.TierLevel,
			dashIfEmpty(c.ReviewMessageID),
			c.UpdatedAt.Format(caseListTimeFormat),
		)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write cases: %w", err)
	}

	return nil
}

func (a *App) newClassifier() *classifier.Client {
	return classifier.New(classifier.Config{
		BaseURL: a.cfg.ClassifierBaseURL,
		Timeout: a.cfg.ClassifierTimeout,
		Token: classifier.TokenConfig{
			Email:       a.cfg.ClassifierEmail,
			ClientID:    a.cfg.ClassifierClientID,
			TTL:         a.cfg.ClassifierTokenTTL,
			RenewMargin: a.cfg.ClassifierRenewMargin,
			Timeout:     a.cfg.ClassifierTokenTimeout,
		},
	}, a.logger)
}

func (a *App) newDownloader() *links.Downloader {
	fetcher := links.NewWebFetcher(a.cfg.WebFetchRPS, a.cfg.DownloadTimeout)
	resolver := links.NewResolver(fetcher, links.NewRejectLog(a.cfg.RejectedURLLog), a.cfg.ResolveTimeout, a.logger)

	return links.NewDownloader(fetcher, resolver, a.cfg.DownloadTimeout, a.logger)
}

// caseStore pairs the selected backend with its readiness check.
type caseStore struct {
	ports.CaseStore
	ping observability.ReadyFunc
}

// openCaseStore selects Postgres when CASE_STORE_DSN is set and the JSON file otherwise.
func (a *App) openCaseStore(ctx context.Context) (caseStore, func(), error) {
	if a.cfg.CaseStoreDSN == "" {
		store, err := db.OpenFileCaseStore(a.cfg.CaseStoreDir, a.logger)
		if err != nil {
			return caseStore{}, nil, fmt.Errorf("open case store: %w", err)
		}

		a.logger.Info().Str(logFieldBackend, backendFile).Msg("case store ready")

		return caseStore{CaseStore: store, ping: alwaysReady}, func() {}, nil
	}

	database, err := db.New(ctx, a.cfg.CaseStoreDSN, a.logger, db.WithMaxConns(a.cfg.CaseStoreMaxConns))
	if err != nil {
		return caseStore{}, nil, fmt.Errorf("connect case store database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return caseStore{}, nil, fmt.Errorf("migrate case store database: %w", err)
	}

	a.logger.Info().Str(logFieldBackend, backendPostgres).Msg("case store ready")

	return caseStore{CaseStore: db.NewPostgresCaseStore(database), ping: database.Ping}, database.Close, nil
}

// dedupCache pairs the selected backend with its lifecycle hooks. sweeper is
// nil for Redis, where expiry is handled by key TTLs.
type dedupCache struct {
	store    ports.DedupCache
	sweeper  sweeper
	ping     observability.ReadyFunc
	shutdown func()
}

// newDedupCache selects Redis when DEDUP_REDIS_URL is set and the in-memory cache otherwise.
func (a *App) newDedupCache() (dedupCache, error) {
	if a.cfg.DedupRedisURL == "" {
		cache := dedup.NewCache(a.cfg.DedupTTL, a.cfg.DedupMaxEntries)

		a.logger.Info().Str(logFieldBackend, backendMemory).Msg("dedup cache ready")

		return dedupCache{store: cache, sweeper: cache, shutdown: func() {}}, nil
	}

	client, err := dedup.Connect(a.cfg.DedupRedisURL)
	if err != nil {
		return dedupCache{}, fmt.Errorf("connect dedup redis: %w", err)
	}

	cache := dedup.NewRedisCache(client, a.cfg.DedupTTL, a.logger)

	a.logger.Info().Str(logFieldBackend, backendRedis).Msg("dedup cache ready")

	shutdown := func() {
		if err := cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close dedup redis client")
		}
	}

	return dedupCache{store: cache, ping: cache.Ping, shutdown: shutdown}, nil
}

// readyChecks builds the /readyz checks. A classifier without a base URL is
// left out so an intentionally disabled scanner does not fail readiness.
func readyChecks(checker statsChecker, store caseStore, cache dedupCache) map[string]observability.ReadyFunc {
	ready := map[string]observability.ReadyFunc{
		readyCaseStore: store.ping,
	}

	if checker.Enabled() {
		ready[readyClassifier] = checker.Ping
	}

	if cache.ping != nil {
		ready[readyDedup] = cache.ping
	}

	return ready
}

func alwaysReady(context.Context) error {
	return nil
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
