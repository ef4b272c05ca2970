// Package app assembles the relay, gateway and ops units from configuration.
package app

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/webchat/webchat/internal/config"
	"github.com/webchat/webchat/internal/database"
	"github.com/webchat/webchat/internal/gateway"
	"github.com/webchat/webchat/internal/message/repository"
	"github.com/webchat/webchat/internal/ops"
	"github.com/webchat/webchat/internal/relay"
	"github.com/webchat/webchat/internal/supervisor"
	"github.com/webchat/webchat/pkg/logger"
	"github.com/webchat/webchat/pkg/metrics"
	"github.com/webchat/webchat/pkg/middleware"
)

const (
	UnitRelay   = "relay"
	UnitGateway = "gateway"
	UnitOps     = "ops"
)

const (
	mongoConnectAttempts = 5
	mongoConnectBackoff  = time.Second
)

var registerOnce sync.Once

// SetupLogging applies the log configuration and puts gin in release mode
// unless debugging.
func SetupLogging(cfg config.LogConfig) {
	logger.Init(cfg.Level)
	logger.SetPretty(cfg.Pretty)
	if logger.LevelString() != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
}

// Units returns the named units, or all of them when names is empty. The ops
// unit is only included when a metrics address is configured.
func Units(cfg *config.Config, names ...string) []supervisor.Unit {
	want := func(n string) bool {
		if len(names) == 0 {
			return true
		}
		for _, x := range names {
			if x == n {
				return true
			}
		}
		return false
	}
	var units []supervisor.Unit
	if want(UnitRelay) {
		units = append(units, RelayUnit(cfg))
	}
	if want(UnitGateway) {
		units = append(units, GatewayUnit(cfg))
	}
	if want(UnitOps) && cfg.Metrics.Addr != "" {
		units = append(units, OpsUnit(cfg))
	}
	return units
}

func RelayUnit(cfg *config.Config) supervisor.Unit {
	return supervisor.Unit{Name: UnitRelay, Run: func(ctx context.Context) error {
		ln, err := net.Listen("tcp", cfg.RelayAddr())
		if err != nil {
			return fmt.Errorf("relay listen %s: %w", cfg.RelayAddr(), err)
		}
		sink, closeSink, err := OpenSink(ctx, cfg.MongoDB)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer closeSink()
		return relay.NewServer(cfg.RelayAddr(), sink, cfg.MongoDB.Timeout).Serve(ctx, ln)
	}}
}

func GatewayUnit(cfg *config.Config) supervisor.Unit {
	return supervisor.Unit{Name: UnitGateway, Run: func(ctx context.Context) error {
		g, cleanup := NewGateway(ctx, cfg)
		defer cleanup()
		return g.ListenAndServe(ctx, cfg.HTTPAddr())
	}}
}

func OpsUnit(cfg *config.Config) supervisor.Unit {
	registerOnce.Do(func() { metrics.RegisterCollectors(prometheus.DefaultRegisterer) })
	return supervisor.Unit{Name: UnitOps, Run: func(ctx context.Context) error {
		return ops.ListenAndServe(ctx, cfg.Metrics.Addr, prometheus.DefaultGatherer)
	}}
}

// OpenSink returns the persistence sink for the relay. Without a URI records
// go to memory. The Mongo client connects lazily, so the relay can accept
// frames while the server is still starting; inserts wait up to the insert
// timeout and failures are logged per connection. Reachability is reported
// from a background check.
func OpenSink(ctx context.Context, mc config.MongoDBConfig) (repository.Sink, func(), error) {
	if mc.URI == "" {
		logger.Warnf("MONGODB_URI not set; messages are kept in memory only")
		return repository.NewMemoryRepo(), func() {}, nil
	}
	client, err := database.OpenMongo(mc.URI)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		err := database.WaitForMongo(ctx, client, mc.Timeout, mongoConnectAttempts, mongoConnectBackoff)
		switch {
		case err == nil:
			logger.Infof("connected to MongoDB (db=%s collection=%s)", mc.Database, mc.Collection)
		case ctx.Err() == nil:
			logger.Warnf("MongoDB not reachable, inserts will fail until it is: %v", err)
		}
	}()
	col := client.Database(mc.Database).Collection(mc.Collection)
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}
	return repository.NewMongoRepo(col), closeFn, nil
}

// NewGateway builds the gateway with its relay client and, when enabled, a
// rate limiter on submissions.
func NewGateway(ctx context.Context, cfg *config.Config) (*gateway.Gateway, func()) {
	client := relay.NewClient(cfg.RelaySendAddr(), cfg.Relay.SendTimeout)
	cleanup := func() {}

	var opts []gateway.Option
	if cfg.RateLimit.Enabled {
		var rdb *redis.Client
		if cfg.RateLimit.UseRedis && cfg.Redis.Host != "" {
			rdb = connectRedis(ctx, cfg.Redis)
			if rdb != nil {
				cleanup = func() { _ = rdb.Close() }
			}
		}
		if rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			opts = append(opts, gateway.WithSubmitGuard(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)))
		} else {
			opts = append(opts, gateway.WithSubmitGuard(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
		}
		logger.Infof("rate limiting submissions: rps=%v burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, rdb != nil)
	}
	return gateway.New(cfg.Static, client, opts...), cleanup
}

// connectRedis returns nil when Redis does not answer a ping, so callers can
// fall back to the in-memory limiter.
func connectRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	addr := rc.Host + ":" + rc.Port
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: rc.Password, DB: rc.DB})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s), using in-memory rate limiter: %v", addr, err)
		_ = rdb.Close()
		return nil
	}
	logger.Infof("connected to Redis for rate limiting: %s", addr)
	return rdb
}
