// Command sessionguardd runs a demonstration server that wires the
// session limiter into a minimal login flow. It is not a production
// application; it shows how the pieces fit together.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sessionguard/sessionguard/modules/sessions"
	"github.com/sessionguard/sessionguard/pkg/audit"
	"github.com/sessionguard/sessionguard/pkg/broadcast"
	"github.com/sessionguard/sessionguard/pkg/config"
	"github.com/sessionguard/sessionguard/pkg/httpserver"
	"github.com/sessionguard/sessionguard/pkg/limiter"
	"github.com/sessionguard/sessionguard/pkg/logger"
	"github.com/sessionguard/sessionguard/pkg/pg"
	"github.com/sessionguard/sessionguard/pkg/redis"
	"github.com/sessionguard/sessionguard/pkg/session"
)

type appConfig struct {
	Env          string        `env:"APP_ENV" envDefault:"development"`
	Backend      string        `env:"SESSION_BACKEND" envDefault:"memory"` // memory, redis or postgres
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieName   string        `env:"SESSION_COOKIE" envDefault:"sid"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	RootUserID   string        `env:"ROOT_USER_ID"`
	LogoutURL    string        `env:"LOGOUT_URL" envDefault:"/login"`
	FrontURL     string        `env:"FRONT_URL" envDefault:"/"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg appConfig
	config.MustLoad(&cfg)

	logOpt := logger.WithDevelopment("sessionguardd")
	if cfg.Env == "production" {
		logOpt = logger.WithProduction("sessionguardd")
	}
	log := logger.New(logOpt)

	var (
		store    session.Store
		settings limiter.SettingsStore
		notices  limiter.NoticeStore
	)

	switch cfg.Backend {
	case "redis":
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		store = session.NewRedisStore(client)
		settings = limiter.NewRedisSettingsStore(client, limiter.DefaultSettings())
		notices = limiter.NewRedisNoticeStore(client)

	case "postgres":
		var pgCfg pg.Config
		config.MustLoad(&pgCfg)
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			log.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		store = session.NewPGStore(pool)
		settings = limiter.NewMemorySettingsStore(limiter.DefaultSettings())
		notices = limiter.NewMemoryNoticeStore()

	default:
		mem := session.NewMemoryStore(time.Minute)
		defer mem.Close()

		store = mem
		settings = limiter.NewMemorySettingsStore(limiter.DefaultSettings())
		notices = limiter.NewMemoryNoticeStore()
	}

	events := broadcast.NewMemoryBroadcaster[limiter.Event](64)
	defer events.Close()
	go logEvictions(ctx, events, log)

	auditor := audit.NewLogger(audit.NewMemoryStorage())

	evictor := limiter.NewEvictor(store, notices,
		limiter.WithEvictorEvents(events),
		limiter.WithEvictorAudit(auditor),
		limiter.WithEvictorLogger(log),
	)

	gateOpts := []limiter.GateOption{
		limiter.WithLogoutURL(cfg.LogoutURL),
		limiter.WithGateAudit(auditor),
		limiter.WithGateLogger(log),
	}
	if cfg.RootUserID != "" {
		rootID, err := uuid.Parse(cfg.RootUserID)
		if err != nil {
			log.Error("invalid ROOT_USER_ID", "error", err)
			os.Exit(1)
		}
		gateOpts = append(gateOpts, limiter.WithRootUser(rootID))
	}
	gate := limiter.NewGate(store, settings, evictor, gateOpts...)

	transport := session.NewCookieTransport(cfg.CookieName, cfg.CookieSecure)

	app := &application{
		cfg:       cfg,
		store:     store,
		transport: transport,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(app.resolveActor)
	r.Use(limiter.NoticeMiddleware(notices, transport, log))
	r.Use(gate.Middleware)

	r.Post("/login", app.login)
	r.Get("/", app.home)
	r.Mount("/sessions", sessions.NewService(store, settings, evictor,
		sessions.WithLogoutURL(cfg.LogoutURL),
		sessions.WithFrontURL(cfg.FrontURL),
		sessions.WithLogger(log),
	).Handle())

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)

	if err := httpserver.New(srvCfg, log).Run(ctx, r); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// logEvictions drains the eviction event stream into the log.
func logEvictions(ctx context.Context, events broadcast.Broadcaster[limiter.Event], log *slog.Logger) {
	sub := events.Subscribe(ctx)
	defer sub.Close()

	for msg := range sub.Receive(ctx) {
		log.InfoContext(ctx, "eviction event",
			"sid", msg.Data.SID,
			"user_id", msg.Data.UserID.String(),
			"reason", string(msg.Data.Reason),
		)
	}
}
