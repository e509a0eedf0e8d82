// Command relay runs the streaming chat relay's HTTP server, wiring
// together Redis (event log), MongoDB (sessions/messages/providers/tools),
// and the upstream provider adapters, following the teacher's
// flag-plus-goa.design/clue/log startup pattern.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/fa-sharp/rschat-relay/internal/config"
	"github.com/fa-sharp/rschat-relay/internal/crypto"
	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/httpapi"
	"github.com/fa-sharp/rschat-relay/internal/store"
	"github.com/fa-sharp/rschat-relay/internal/telemetry"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to a YAML config file (optional; env vars always override)")
		dbgF    = flag.Bool("debug", false, "Log request and response bodies")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if err := run(ctx, *configF); err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.SecretKeyBase64)
	if err != nil {
		return fmt.Errorf("decode secret key: %w", err)
	}
	secrets, err := crypto.New(key)
	if err != nil {
		return fmt.Errorf("construct secret box: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.PoolSize = cfg.Redis.PoolSize
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	// mongo-driver/v2's Connect no longer takes a context (dropped vs. v1).
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	storeOpts := store.Options{Client: mongoClient, Database: cfg.Mongo.Database}
	sessions, err := store.New(ctx, storeOpts)
	if err != nil {
		return fmt.Errorf("construct session store: %w", err)
	}
	catalogStore, err := store.NewCatalogStore(ctx, storeOpts)
	if err != nil {
		return fmt.Errorf("construct catalog store: %w", err)
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	srv := &httpapi.Server{
		Log:         eventlog.NewRedisLog(rdb),
		Sessions:    sessions,
		Catalog:     catalogStore,
		Secrets:     secrets,
		Logger:      logger,
		Metrics:     metrics,
		Executor:    toolexec.New(sessions),
		Adapters:    httpapi.NewAdapterRegistry(secrets, http.DefaultClient),
		ToolCatalog: httpapi.NewToolRegistry(time.Now().UTC()),
		AuthSecret:  key,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		<-sigc
		cancel()
	}()

	return httpapi.Run(runCtx, cfg.HTTPAddr, srv.NewRouter(), logger)
}
