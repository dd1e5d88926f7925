// Package app wires configuration, storage, the engine and the services
// together for the binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/repository"
	"credit-engine/internal/repository/sqldb"
	"credit-engine/internal/service"
)

// App holds the long-lived objects of a running process
type App struct {
	Config   *configs.Config
	Logger   *logrus.Logger
	DB       *sql.DB
	Repos    *repository.Repository
	Engine   *engine.Engine
	Services *service.Service
	// Location is the business time zone payments are dated in
	Location *time.Location
}

// New opens the database, applies the schema, loads the rule tables and the
// inline holiday calendars and builds the services.
func New(ctx context.Context, cfg *configs.Config, logOut io.Writer) (*App, error) {
	log, err := configs.NewLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	db, err := initDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rules, err := configs.LoadRules(cfg.Engine.RulesFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	eng, err := engine.New(rules.Rules())
	if err != nil {
		db.Close()
		return nil, err
	}

	loc, err := cfg.Engine.Location()
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepository(db)
	deps := service.Dependencies{
		Repos:    repos,
		Logger:   log,
		Config:   cfg,
		Engine:   eng,
		Location: loc,
	}
	// a nil *SMTPMailer must not end up inside the interface
	if mailer := service.NewSMTPMailer(cfg.Email); mailer != nil {
		deps.Mailer = mailer
	} else {
		log.Warn("SMTP_HOST is not set, delinquency reminders are disabled")
	}
	services := service.NewService(deps)

	if _, err := services.Holiday.ImportRules(ctx, rules); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load holiday calendars: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Repos:    repos,
		Engine:   eng,
		Services: services,
		Location: loc,
	}, nil
}

// Now returns the current time in the business zone
func (a *App) Now() time.Time {
	return time.Now().In(a.Location)
}

// Close releases the database
func (a *App) Close() error {
	return a.DB.Close()
}

func initDB(ctx context.Context, cfg *configs.Config) (*sql.DB, error) {
	db, err := sqldb.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err = sqldb.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
