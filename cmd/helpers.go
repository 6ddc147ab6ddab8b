package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/audit"
	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/config"
	"github.com/ziadkadry99/supportbot/internal/customers"
	"github.com/ziadkadry99/supportbot/internal/db"
	"github.com/ziadkadry99/supportbot/internal/logging"
	"github.com/ziadkadry99/supportbot/internal/server"
	"github.com/ziadkadry99/supportbot/internal/session"
	"github.com/ziadkadry99/supportbot/internal/tickets"
)

// loadConfig reads the config file and environment, then applies check.
func loadConfig(check func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is the wired bot: storage, ticket registry and session engine on top
// of one transport.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	database    *db.DB
	ticketStore *tickets.Store
	auditStore  *audit.Store
	registry    *tickets.Registry
	engine      *session.Engine
}

func newApp(cfg *config.Config, transport bots.Transport, logger *zap.Logger) (*app, error) {
	logger = logging.OrNop(logger)
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		database:    database,
		ticketStore: tickets.NewStore(database),
		auditStore:  audit.NewStore(database),
	}
	a.registry = tickets.NewRegistry(tickets.RegistryConfig{
		AdminChatID:    cfg.AdminChatID,
		Transport:      transport,
		Store:          a.ticketStore,
		Logger:         logger.Named("tickets"),
		OperatorOnline: cfg.Operator.OnlineAtStart,
	})
	a.engine, err = session.New(session.Config{
		AdminChatID:  cfg.AdminChatID,
		Transport:    transport,
		Registry:     a.registry,
		Customers:    customers.NewStore(database),
		Audit:        a.auditStore,
		Logger:       logger.Named("engine"),
		ConnectDelay: cfg.Operator.ConnectDelay,
		MailboxSize:  cfg.Engine.MailboxSize,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating session engine: %w", err)
	}
	return a, nil
}

// httpServer returns the admin API server, or nil when it is disabled.
func (a *app) httpServer() *server.Server {
	if !a.cfg.HTTP.Enabled {
		return nil
	}
	return server.New(server.Config{
		Port:     a.cfg.HTTP.Port,
		AllowAll: a.cfg.HTTP.AllowAllOrigins,
	}, server.Deps{
		Registry:    a.registry,
		TicketStore: a.ticketStore,
		Audit:       a.auditStore,
		Engine:      a.engine,
	}, a.logger.Named("server"))
}

func (a *app) Close() error {
	a.engine.Close()
	return a.database.Close()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// openDatabase opens the configured database for the read-only commands.
func openDatabase() (*db.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}
