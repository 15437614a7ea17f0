package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cagr1tekin/MyVisa-Bot/internal/config"
	"github.com/cagr1tekin/MyVisa-Bot/internal/database"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/notifier"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/proxypool"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/scraper"
	"github.com/cagr1tekin/MyVisa-Bot/pkg/sites"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	genConfig  = flag.Bool("gen-config", false, "Generate default config file")
	version    = flag.Bool("version", false, "Show version")
)

const Version = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("MyVisa-Bot v%s\n", Version)
		return
	}

	if *genConfig {
		if err := config.SaveConfigTemplate("config.yaml"); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Println("Default config generated: config.yaml")
		return
	}

	// Token and chat IDs may live in .env; load it before the config reads
	// the environment.
	if err := godotenv.Load(); err == nil {
		log.Println(".env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting MyVisa-Bot v%s", Version)
	config.PrintConfig(cfg)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	history := database.NewService(db)

	manager, err := proxypool.NewManager(proxypool.Config{
		PoolFile:         cfg.Proxy.PoolFile,
		BlacklistFile:    cfg.Proxy.BlacklistFile,
		CacheFile:        cfg.Proxy.CacheFile,
		TestURL:          cfg.Proxy.TestURL,
		ProbeTimeout:     cfg.Proxy.ProbeTimeout,
		LatencyThreshold: cfg.Proxy.LatencyThreshold,
		Cooldown:         cfg.Proxy.Cooldown,
		UpdateInterval:   cfg.Proxy.UpdateInterval,
		MaxFailures:      cfg.Proxy.MaxFailures,
		BatchSize:        cfg.Proxy.BatchSize,
		CacheTTL:         cfg.Proxy.CacheTTL,
		StopJoinTimeout:  cfg.Proxy.StopJoinTimeout,
		UserAgent:        cfg.Scraper.UserAgent,
	}, history)
	if err != nil {
		log.Fatalf("Failed to create proxy manager: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Refresh the pool from the free-proxy sources before the first cycle.
	multiScraper := scraper.NewMultiScraper(scraper.Config{
		Timeout:   cfg.Scraper.Timeout,
		UserAgent: cfg.Scraper.UserAgent,
		Sources:   cfg.Scraper.Sources,
	})
	if added, err := multiScraper.RefreshPool(ctx, manager.Store()); err != nil {
		log.Printf("Initial pool refresh failed: %v", err)
	} else {
		log.Printf("Initial pool refresh: %d endpoints added", added)
	}

	manager.StartBackgroundProber()

	go cleanupLoop(ctx, history, cfg.Database.MaxAge, cfg.Database.CleanupInterval)

	client := sites.NewClient(manager, cfg.Sites.RequestTimeout, "")
	checkers := buildCheckers(cfg.Sites.Enabled, client)
	if len(checkers) == 0 {
		log.Fatal("No site checkers enabled")
	}

	telegram := notifier.NewTelegramNotifier(notifier.Config{
		Enabled:       cfg.Notifier.Enabled,
		BotToken:      cfg.Notifier.BotToken,
		ChatIDs:       cfg.Notifier.ChatIDs,
		RetryAttempts: cfg.Notifier.RetryAttempts,
		Timeout:       cfg.Notifier.Timeout,
	})

	runPollLoop(ctx, cfg, manager, checkers, telegram)

	log.Println("Shutting down...")
	if !manager.StopBackgroundProber() {
		log.Println("Background prober did not stop cleanly")
	}
	log.Println("Shutdown complete")
}

func buildCheckers(enabled []string, client *sites.Client) []sites.Checker {
	var checkers []sites.Checker
	for _, name := range enabled {
		switch name {
		case "usvisa":
			checkers = append(checkers, sites.NewUSVisaChecker(client))
		case "vfsglobal":
			checkers = append(checkers, sites.NewVFSGlobalChecker(client))
		case "canadavisa":
			checkers = append(checkers, sites.NewCanadaVisaChecker(client))
		}
	}
	return checkers
}

// runPollLoop checks every enabled site on the poll interval until the
// context is cancelled. With no valid proxies it backs off briefly instead
// of burning a full interval.
func runPollLoop(ctx context.Context, cfg *config.Config, manager *proxypool.Manager, checkers []sites.Checker, telegram *notifier.TelegramNotifier) {
	cycle := 0
	for {
		cycle++
		start := time.Now()
		log.Printf("Check cycle #%d starting", cycle)

		if manager.Stats().Valid == 0 {
			log.Printf("No valid proxies, backing off %v", cfg.Bot.EmptyPoolBackoff)
			if !sleepCtx(ctx, cfg.Bot.EmptyPoolBackoff) {
				return
			}
			continue
		}

		var found []sites.Appointment
		for _, checker := range checkers {
			appointments, err := checker.Check(ctx)
			if err != nil {
				log.Printf("Checker %s failed: %v", checker.Name(), err)
				continue
			}
			found = append(found, appointments...)
		}

		log.Printf("Check cycle #%d finished in %.1fs, %d findings", cycle, time.Since(start).Seconds(), len(found))

		if len(found) > 0 {
			telegram.Send(ctx, formatFindings(cycle, found))
		}

		if cycle%cfg.Bot.StatsEveryCycles == 0 {
			stats := manager.Stats()
			log.Printf("Cycle #%d proxy stats: %d valid of %d, success rate %s",
				cycle, stats.Valid, stats.PoolTotal, stats.SuccessRate)
			log.Printf("Cycle #%d notifier stats: %v", cycle, telegram.Stats())
		}

		if !sleepCtx(ctx, cfg.Bot.PollInterval) {
			return
		}
	}
}

func formatFindings(cycle int, found []sites.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Appointments found (cycle #%d)</b>\n", cycle)
	for _, appointment := range found {
		fmt.Fprintf(&b, "• %s\n", appointment)
	}
	return b.String()
}

// cleanupLoop prunes old probe history records on a fixed interval.
func cleanupLoop(ctx context.Context, history *database.Service, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := history.CleanupOldRecords(ctx, maxAge); err != nil {
				log.Printf("History cleanup failed: %v", err)
			} else if removed > 0 {
				log.Printf("History cleanup: %d old records removed", removed)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
