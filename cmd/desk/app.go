package main

import (
	"context"
	"fmt"

	"github.com/zulandar/benchdesk/internal/announce"
	"github.com/zulandar/benchdesk/internal/announce/discord"
	"github.com/zulandar/benchdesk/internal/announce/slack"
	"github.com/zulandar/benchdesk/internal/backend"
	"github.com/zulandar/benchdesk/internal/config"
	"github.com/zulandar/benchdesk/internal/db"
	"github.com/zulandar/benchdesk/internal/intake"
	"github.com/zulandar/benchdesk/internal/ledger"
	"github.com/zulandar/benchdesk/internal/observability"
	"github.com/zulandar/benchdesk/internal/receipts"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// loadConfig loads the config file and builds the logger it selects.
func loadConfig(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newBackend(cfg *config.Config, log *zap.Logger) (*backend.Client, error) {
	return backend.New(backend.Options{
		BaseURL:         cfg.API.Endpoint,
		AccessToken:     cfg.API.AccessToken,
		Timeout:         cfg.API.Timeout,
		LookupRateLimit: cfg.API.LookupRateLimit,
		Logger:          log.Named("backend"),
	})
}

// connectLedger opens and migrates the ledger database.
func connectLedger(cfg *config.Config) (*gorm.DB, error) {
	l := cfg.Ledger
	gormDB, err := db.Connect(db.Options{
		Driver:   l.Driver,
		Path:     l.Path,
		Host:     l.Host,
		Port:     l.Port,
		Database: l.Database,
		User:     l.User,
		Password: l.Password,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

// newAdapter returns the configured chat adapter, or nil when announcements
// are off.
func newAdapter(cfg config.AnnounceConfig, log *zap.Logger) (announce.Adapter, error) {
	switch cfg.Platform {
	case "slack":
		a, err := slack.New(slack.AdapterOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.ChannelID, Logger: log})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "discord":
		a, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.ChannelID, Logger: log})
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, nil
}

// app is the wired intake stack: backend client, lookup, submitter and the
// submission observers.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	api       *backend.Client
	ledger    *ledger.Ledger
	announcer *announce.Announcer
	receipts  *receipts.Archiver
	lookup    *intake.LookupService
	submitter *intake.Submitter
}

// announcerOpts builds the announcer options for cfg.
func announcerOpts(cfg config.AnnounceConfig, adapter announce.Adapter, log *zap.Logger) announce.AnnouncerOpts {
	opts := announce.AnnouncerOpts{
		Adapter:   adapter,
		ChannelID: cfg.ChannelID,
		Logger:    log,
	}
	if cfg.FailuresOnly {
		opts.Filter = announce.FailuresOnly
	}
	return opts
}

// openApp wires the stack from cfg. Announcement and receipt failures at
// startup are logged and the feature is disabled.
func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	api, err := newBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, api: api, lookup: intake.NewLookupService(api, log.Named("lookup"))}

	gormDB, err := connectLedger(cfg)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger.New(gormDB, log.Named("ledger"))
	observers := []intake.Observer{a.ledger}

	adapter, err := newAdapter(cfg.Announce, log.Named("announce"))
	if err != nil {
		return nil, err
	}
	if adapter != nil {
		an := announce.NewAnnouncer(announcerOpts(cfg.Announce, adapter, log.Named("announce")))
		if err := an.Start(ctx); err != nil {
			log.Warn("announcements disabled", zap.Error(err))
		} else {
			a.announcer = an
			observers = append(observers, an)
		}
	}

	if r := cfg.Receipts; r.Bucket != "" {
		archiver, err := receipts.New(ctx, receipts.Options{
			Bucket:         r.Bucket,
			Prefix:         r.Prefix,
			Region:         r.Region,
			Endpoint:       r.Endpoint,
			ForcePathStyle: r.ForcePathStyle,
			Logger:         log.Named("receipts"),
		})
		if err != nil {
			log.Warn("receipts disabled", zap.Error(err))
		} else {
			a.receipts = archiver
			observers = append(observers, archiver)
		}
	}

	a.submitter = intake.NewSubmitter(api, intake.SubmitterOptions{
		TechnicianID:      intake.ID(cfg.Session.TechnicianID),
		EmailSubject:      cfg.Submission.EmailSubject,
		EmailBody:         cfg.Submission.EmailBody,
		CompensateOrphans: cfg.Submission.CompensateOrphans,
		Observers:         observers,
		Logger:            log.Named("submit"),
	})
	return a, nil
}

// newSession opens a form session on the app.
func (a *app) newSession() *intake.Session {
	return intake.NewSession(a.lookup, a.submitter, a.log.Named("session"))
}

// Close flushes announcements, pending receipts and the logger.
func (a *app) Close() {
	if a.receipts != nil {
		a.receipts.Close()
	}
	if a.announcer != nil {
		if err := a.announcer.Close(); err != nil {
			a.log.Warn("close announcer", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
