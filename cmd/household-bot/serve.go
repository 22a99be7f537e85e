package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"household-bot/internal/config"
	"household-bot/internal/correlation"
	"household-bot/internal/database"
	"household-bot/internal/dispatch"
	"household-bot/internal/mealplan"
	"household-bot/internal/metrics"
	"household-bot/internal/recipe"
	"household-bot/internal/reminder"
	"household-bot/internal/sweep"
	"household-bot/internal/telegram"
	"household-bot/internal/user"
)

func runServe() error {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize the SQLite record store
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	users := user.NewRepository(db.SQL)
	recipes := recipe.NewRepository(db.SQL)
	plans := mealplan.NewRepository(db.SQL)
	reminders := reminder.NewRepository(db.SQL)
	correlations := correlation.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	// 3. Initialize the engine; the messenger arrives with the bot below
	policy := reminder.SendPolicy{
		Location:       cfg.Location,
		OverdueSameDay: cfg.SendOverdueSameDay,
	}
	engine := reminder.NewEngine(reminders, nil, nil, policy)
	manager := mealplan.NewManager(plans, recipes, reminders, correlations, cfg.Location)

	// 4. Initialize the Telegram front end and wire the delivery path
	bot, api, err := telegram.NewBot(cfg, engine, users, metricsStore)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram Bot: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(telegram.NewMessenger(api), correlations, metricsStore, cfg.Location)
	engine.SetNotifier(dispatcher)
	engine.SetRotator(manager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Start the sweep jobs on their own (single) goroutine
	jobs := sweep.New(engine, manager, correlations, metricsStore)
	go jobs.Run(ctx)

	// 6. Start Server with Graceful Shutdown
	bot.RegisterHandlers()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: nil,
	}

	go func() {
		log.Printf("Household Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exiting")
	return nil
}
