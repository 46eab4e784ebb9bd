// Package main provides the claim server binary: the HTTP claim endpoint,
// the catalog and player read APIs, and the periodic reconciliation and
// key-sweep jobs.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/api"
	"github.com/Unwrenchable/fizz-caps/internal/claim"
	"github.com/Unwrenchable/fizz-caps/internal/config"
	"github.com/Unwrenchable/fizz-caps/internal/game/catalog"
	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
	"github.com/Unwrenchable/fizz-caps/internal/game/player"
	"github.com/Unwrenchable/fizz-caps/internal/game/raid"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
	"github.com/Unwrenchable/fizz-caps/internal/observability"
	"github.com/Unwrenchable/fizz-caps/internal/reconcile"
	"github.com/Unwrenchable/fizz-caps/internal/scripting"
	"github.com/Unwrenchable/fizz-caps/internal/server"
	"github.com/Unwrenchable/fizz-caps/internal/storage/objectstore"
	"github.com/Unwrenchable/fizz-caps/internal/storage/postgres"
	"github.com/Unwrenchable/fizz-caps/internal/storage/redis"
	"github.com/Unwrenchable/fizz-caps/internal/store"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown budget")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no %s file loaded, using process environment", *envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "claimserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc := server.NewLifecycle(logger, *shutdownTimeout)

	cat, err := catalog.LoadFromFile(cfg.Claim.CatalogPath)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("locations", cat.Len()),
		zap.Strings("high_risk", cat.HighRisk()),
	)

	var pool *postgres.Pool
	if cfg.NeedsDatabase() {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		lc.OnShutdown("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	kv, sweeper := openStore(ctx, cfg, pool, lc, logger)
	players := player.NewManager(kv, logger)

	var uploader issuer.MetadataUploader
	if cfg.ObjectStore.Bucket != "" {
		client, err := objectstore.NewClient(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Fatal("creating object store client", zap.Error(err))
		}
		uploader = objectstore.NewUploader(client, cfg.ObjectStore.Bucket, objectstore.PublicBaseURL(cfg.ObjectStore))
		logger.Info("collectible metadata uploads enabled", zap.String("bucket", cfg.ObjectStore.Bucket))
	}

	iss := openIssuer(cfg, pool, uploader, logger)

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	var raids raid.Resolver = raid.Default{}
	if cfg.Claim.RaidScriptDir != "" {
		scripts := scripting.NewManager(roller, logger)
		if err := scripts.Load(raid.Namespace, cfg.Claim.RaidScriptDir, 0); err != nil {
			logger.Fatal("loading raid scripts", zap.String("dir", cfg.Claim.RaidScriptDir), zap.Error(err))
		}
		lc.OnShutdown("scripting", func(context.Context) error {
			scripts.Close()
			return nil
		})
		raids = raid.NewScript(scripts, raid.Default{}, logger)
		logger.Info("raid scripts loaded", zap.String("dir", cfg.Claim.RaidScriptDir))
	}

	orch := claim.NewOrchestrator(
		claim.Config{
			RewardCaps:    cfg.Claim.RewardCaps,
			Cooldown:      cfg.Claim.Cooldown,
			IssuerTimeout: cfg.Claim.IssuerTimeout,
		},
		claim.Deps{
			Catalog: cat,
			Players: players,
			Store:   kv,
			Issuer:  iss,
			Roller:  roller,
			Raids:   raids,
			Logger:  logger,
		},
	)

	sched, err := reconcile.NewScheduler(logger)
	if err != nil {
		logger.Fatal("creating scheduler", zap.Error(err))
	}

	deps := api.Deps{
		Claims:         orch,
		Catalog:        cat,
		Players:        players,
		Health:         kv,
		AdminTokenHash: cfg.Reconcile.AdminTokenHash,
		Cluster:        cfg.Claim.Cluster,
		Logger:         logger,
	}
	if br, ok := iss.(issuer.BalanceReporter); ok {
		deps.Balances = br
	}
	if ledger, ok := iss.(issuer.Auditor); ok && cfg.Reconcile.Enabled {
		lister, _ := kv.(store.Lister)
		auditor := reconcile.NewAuditor(ledger, players, lister, logger)
		if _, err := reconcile.ScheduleAudit(ctx, sched, auditor, cfg.Reconcile.Interval); err != nil {
			logger.Fatal("scheduling reconciliation", zap.Error(err))
		}
		deps.Reports = auditor
	}
	if sweeper != nil && cfg.Store.SweepInterval > 0 {
		if _, err := reconcile.ScheduleSweep(ctx, sched, sweeper, cfg.Store.SweepInterval, logger); err != nil {
			logger.Fatal("scheduling key sweep", zap.Error(err))
		}
	}

	srv := api.New(cfg.Server, deps)
	lc.Add("http", srv)
	lc.Add("scheduler", schedulerService(sched))

	logger.Info("claim server ready",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("store", cfg.Store.Backend),
		zap.String("issuer", cfg.Issuer.Backend),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("claim server exited with error", zap.Error(err))
	}
}

// openStore selects the key-value backend. The returned Sweeper is nil for
// backends with native expiry.
func openStore(ctx context.Context, cfg config.Config, pool *postgres.Pool, lc *server.Lifecycle, logger *zap.Logger) (store.Store, store.Sweeper) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		kv := postgres.NewKVStore(pool.DB(), logger)
		return kv, kv
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("connecting to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		kv := redis.New(client, logger)
		lc.OnShutdown("redis", func(context.Context) error { return kv.Close() })
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		return kv, nil
	default:
		logger.Warn("using in-memory store; state is lost on restart")
		kv := store.NewMemory()
		return kv, kv
	}
}

func openIssuer(cfg config.Config, pool *postgres.Pool, uploader issuer.MetadataUploader, logger *zap.Logger) issuer.Issuer {
	if cfg.Issuer.Backend == "ledger" {
		return postgres.NewLedger(pool.DB(), cfg.Issuer.Decimals, uploader, logger)
	}
	logger.Warn("using in-memory issuer; mints are not durable")
	return issuer.NewMemory(uploader)
}

// schedulerService runs the gocron scheduler under the lifecycle.
func schedulerService(s gocron.Scheduler) server.Service {
	done := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			s.Start()
			<-done
			return nil
		},
		StopFn: func(context.Context) error {
			close(done)
			return s.Shutdown()
		},
	}
}
