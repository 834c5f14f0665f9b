package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadmarket/config"
	"leadmarket/geo"
	"leadmarket/ledger"
	"leadmarket/matching"
	"leadmarket/models"
	"leadmarket/notify"
	"leadmarket/services"
	"leadmarket/storage"
	"leadmarket/utils"
)

// leadsPerAgent caps how many ranked leads are logged for each agent.
const leadsPerAgent = 5

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Lead marketplace match sync starting ===")
	logger.Info("Config | brand: %s | radius: %.0fmi | notify workers: %d | interval: %dms",
		cfg.Brand, cfg.DefaultSearchRadius, cfg.NotifyConcurrency, cfg.NotifyIntervalMs)

	if err := storage.RunMigrations(cfg.MigrateURL()); err != nil {
		logger.Error("Migrations failed: %v", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	cities, err := geo.LoadCityIndex(cfg.CityDBPath)
	if err != nil {
		logger.Warn("City database unavailable, matching falls back to exact city: %v", err)
		cities = geo.NewCityIndex(nil)
	}
	enricher := geo.NewEnricher(cities, cfg.NearbyRadiusMiles, logger)

	limits, err := config.LoadBrandLimits(cfg.BrandConfigPath)
	if err != nil {
		logger.Error("Brand limits: %v", err)
		os.Exit(1)
	}
	limiter := ledger.NewRateLimiter(limits, cfg.RateLimitWindow, logger)
	go limiter.Run(ctx, cfg.RateLimitSweep)

	properties, err := prepareProperties(ctx, store, enricher, logger)
	if err != nil {
		logger.Error("Loading properties failed: %v", err)
		os.Exit(1)
	}
	if len(properties) == 0 {
		logger.Error("No matchable properties in the store. Exiting.")
		os.Exit(1)
	}
	refreshBuyers(ctx, store, enricher, properties, cfg.DefaultSearchRadius, logger)

	dispatcher := buildDispatcher(cfg, logger)
	notifier := ledger.NewNotifier(store,
		limiter.Limited(cfg.Brand, config.ServiceSMS, dispatcher), cfg.DashboardURL, logger)
	evaluator := matching.NewEvaluator(cfg.DefaultSearchRadius)

	matchSync := services.NewMatchSync(store, evaluator, notifier, logger, cfg.NotifyConcurrency, cfg.NotifyIntervalMs)
	if cfg.MatchExportPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.MatchExportPath)
		if err != nil {
			logger.Error("Failed to create match export: %v", err)
			os.Exit(1)
		}
		defer csvWriter.Close()
		matchSync.WithExporter(csvWriter)
	}

	records, err := matchSync.Run(ctx, properties)
	if err != nil {
		logger.Error("Match sync failed: %v", err)
		os.Exit(1)
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(len(properties), records)
	insightSvc.Print(report)

	book := ledger.New(store, cfg.PurchaseMaxAttempts, cfg.PurchaseBaseDelay, logger)
	discovery := matching.NewDiscovery(store, evaluator, logger)
	summariseAgents(ctx, store, book, discovery, logger)

	for _, st := range limiter.Status(cfg.Brand) {
		if st.Count > 0 {
			logger.Info("Quota %s/%s: %d/%d used", st.Brand, st.Service, st.Count, st.Limit)
		}
	}

	if cfg.MatchExportPath != "" {
		fmt.Printf("  Done. Matches → %s | Notifications sent: %d\n\n",
			cfg.MatchExportPath, report.ByOutcome[models.OutcomeNotified])
	} else {
		fmt.Printf("  Done. Notifications sent: %d\n\n", report.ByOutcome[models.OutcomeNotified])
	}
}

// prepareProperties cleans and geo-enriches every stored listing and writes
// the result back.
func prepareProperties(ctx context.Context, store storage.Store, enricher *geo.Enricher, logger *utils.Logger) ([]*models.PropertyListing, error) {
	stored, err := store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	cleaned := services.NewCleaner(logger).Clean(stored)
	for _, p := range cleaned {
		enricher.EnrichProperty(ctx, p)
		if err := store.SaveProperty(ctx, p); err != nil {
			logger.Warn("Could not save cleaned property %s: %v", p.ID, err)
		}
	}
	return cleaned, nil
}

// refreshBuyers regenerates stale buyer filters in every state that has a
// property to match.
func refreshBuyers(ctx context.Context, store storage.Store, enricher *geo.Enricher, properties []*models.PropertyListing, radius float64, logger *utils.Logger) {
	states := make(map[string]struct{})
	for _, p := range properties {
		states[p.State] = struct{}{}
	}
	for state := range states {
		buyers, err := store.ActiveBuyers(ctx, state)
		if err != nil {
			logger.Warn("Could not load buyers in %s: %v", state, err)
			continue
		}
		for _, b := range buyers {
			enricher.EnrichBuyer(ctx, b, radius)
			if err := store.UpdateBuyerLocation(ctx, b.ID, b.Latitude, b.Longitude, b.Filter); err != nil {
				logger.Warn("Could not save buyer %s: %v", b.ID, err)
			}
		}
	}
}

func buildDispatcher(cfg *config.Config, logger *utils.Logger) ledger.Dispatcher {
	var channels notify.Multi
	if cfg.NotifyWebhookURL != "" {
		channels = append(channels, notify.NewWebhook(cfg.NotifyWebhookURL, cfg.NotifyMaxRetries, logger))
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("Telegram disabled: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		logger.Warn("No notification channel configured, running dry")
		return notify.LogOnly{Logf: logger.Info}
	}
	return channels
}

// summariseAgents logs each agent's balance and best available leads.
func summariseAgents(ctx context.Context, store storage.Store, book *ledger.Ledger, discovery *matching.Discovery, logger *utils.Logger) {
	agents, err := store.ListAgents(ctx)
	if err != nil {
		logger.Error("Could not list agents: %v", err)
		return
	}
	for _, a := range agents {
		history, err := book.History(ctx, a.ID)
		if err != nil {
			logger.Warn("Agent %s history: %v", a.ID, err)
		}
		area := a.ServiceArea
		area.AgentID = a.ID
		leads, err := discovery.FindAvailableLeads(ctx, area, leadsPerAgent)
		if err != nil {
			logger.Warn("Agent %s lead discovery: %v", a.ID, err)
			continue
		}
		logger.Info("Agent %s: %d credits, %d ledger entries, %d leads available",
			a.ID, a.Credits, len(history), len(leads))
		for i, l := range leads {
			logger.Info("  %d. %s (%s) score %.2f, %d matching properties, %d credit(s)",
				i+1, l.Buyer.FirstName, l.Buyer.PreferredCity, l.Score, l.MatchedProperties, l.LeadPrice)
		}
	}
}
