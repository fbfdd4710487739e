package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"

	"github.com/streamtide/guardian/moderation/appeals"
	"github.com/streamtide/guardian/moderation/cachestore"
	"github.com/streamtide/guardian/moderation/classifier"
	"github.com/streamtide/guardian/moderation/consumer"
	"github.com/streamtide/guardian/moderation/countstore"
	"github.com/streamtide/guardian/moderation/engine"
	"github.com/streamtide/guardian/moderation/flagstore"
	"github.com/streamtide/guardian/moderation/massreport"
	"github.com/streamtide/guardian/moderation/notify"
	"github.com/streamtide/guardian/moderation/queue"
	"github.com/streamtide/guardian/moderation/setstore"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
	"github.com/streamtide/guardian/moderation/util"
)

const cacheTTL = 5 * time.Minute

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "guardian",
		Usage:   "trust and safety enforcement daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/guardian/guardian.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters, flags, caches, and the consumer cursor",
			EnvVars: []string{"GUARDIAN_REDIS_URL", "REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin/service API",
			Value:   ":3310",
			EnvVars: []string{"GUARDIAN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":3311",
			EnvVars: []string{"GUARDIAN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "event-stream-host",
			Usage:   "websocket host of the chat event stream; consumer disabled when empty",
			EnvVars: []string{"GUARDIAN_EVENT_STREAM_HOST"},
		},
		&cli.IntFlag{
			Name:    "consumer-parallelism",
			Usage:   "max concurrent event-processing workers",
			Value:   32,
			EnvVars: []string{"GUARDIAN_CONSUMER_PARALLELISM"},
		},
		&cli.StringFlag{
			Name:    "classifier-host",
			Usage:   "scoring service base URL; keyword fallback classifier used when empty",
			EnvVars: []string{"GUARDIAN_CLASSIFIER_HOST"},
		},
		&cli.StringFlag{
			Name:    "classifier-token",
			EnvVars: []string{"GUARDIAN_CLASSIFIER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "rule-sets",
			Usage:   "path to JSON file of named term/category sets",
			EnvVars: []string{"GUARDIAN_RULE_SETS"},
		},
		&cli.StringFlag{
			Name:    "notify-webhook-host",
			Usage:   "notification service base URL; deliveries logged when empty",
			EnvVars: []string{"GUARDIAN_NOTIFY_WEBHOOK_HOST"},
		},
		&cli.StringFlag{
			Name:    "notify-webhook-token",
			EnvVars: []string{"GUARDIAN_NOTIFY_WEBHOOK_TOKEN"},
		},
	},
	Action: runAction,
}

func runAction(cctx *cli.Context) error {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownOtel, err := setupOtel(ctx)
	if err != nil {
		return err
	}
	defer shutdownOtel()

	st, err := store.NewStore(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	sets := setstore.NewMemSetStore()
	if p := cctx.String("rule-sets"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			return fmt.Errorf("loading rule sets: %w", err)
		}
		logger.Info("loaded rule sets", "path", p)
	}

	var counters countstore.CountStore
	var flags flagstore.FlagStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	redisURL := cctx.String("redis-url")
	if redisURL != "" {
		counters, err = countstore.NewRedisCountStore(redisURL)
		if err != nil {
			return fmt.Errorf("initializing redis counters: %w", err)
		}
		flags, err = flagstore.NewRedisFlagStore(redisURL)
		if err != nil {
			return fmt.Errorf("initializing redis flags: %w", err)
		}
		cache, err = cachestore.NewRedisCacheStore(redisURL, cacheTTL)
		if err != nil {
			return fmt.Errorf("initializing redis cache: %w", err)
		}
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	} else {
		logger.Info("redis not configured, using in-process stores")
		counters = countstore.NewMemCountStore()
		flags = flagstore.NewMemFlagStore()
		cache = cachestore.NewMemCacheStore(50_000, cacheTTL)
	}

	var cls classifier.Classifier
	if host := cctx.String("classifier-host"); host != "" {
		cls = classifier.NewRemoteClassifier(host, cctx.String("classifier-token"))
	} else {
		logger.Info("classifier host not configured, using keyword classifier")
		cls = classifier.NewKeywordClassifier(sets)
	}
	cls = classifier.NewFailOpenClassifier(logger, cls)

	var push notify.PushSender
	var inbox notify.InboxWriter
	if host := cctx.String("notify-webhook-host"); host != "" {
		sender := notify.NewWebhookSender(host, cctx.String("notify-webhook-token"))
		push, inbox = sender, sender
	} else {
		logger.Info("notification webhook not configured, logging deliveries")
		push = &notify.LogSender{Logger: logger}
		inbox = &notify.LogInbox{Logger: logger}
	}
	dispatcher := notify.NewDispatcher(logger, push, inbox, counters, cache, st)
	ledger := strikes.NewLedger(logger, st, dispatcher, util.NewKeyLock())
	q := queue.NewQueue(logger, st, dispatcher, queue.SetBackedEscalationPolicy(sets, "admin-escalation-categories"))
	reports := massreport.NewDetector(logger, st, counters, flags, dispatcher)
	eng := engine.NewEngine(logger, cls, st, ledger, q, reports, dispatcher, counters, flags)
	eng.Sets = sets

	srv := NewServer(logger, Config{
		Bind:    cctx.String("bind"),
		Store:   st,
		Engine:  eng,
		Queue:   q,
		Strikes: ledger,
		Reports: reports,
		Appeals: appeals.NewResolver(logger, st, sets, ledger, dispatcher),
	})

	go func() {
		if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
			logger.Error("failed to start metrics endpoint", "err", err)
			panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
		}
	}()

	go eng.RunExpirySweep(ctx)

	if host := cctx.String("event-stream-host"); host != "" {
		con := consumer.NewConsumer(logger, eng, host, cctx.Int("consumer-parallelism"), rdb)
		go func() {
			if err := con.Run(ctx); err != nil {
				logger.Error("event stream consumer stopped", "err", err)
			}
		}()
		go func() {
			_ = con.RunPersistCursor(ctx)
		}()
	}

	return srv.RunAPI()
}
