package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/config"
	"github.com/zulandar/cpg/internal/db"
	"github.com/zulandar/cpg/internal/logging"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/notify/discord"
	"github.com/zulandar/cpg/internal/notify/slack"
	"github.com/zulandar/cpg/internal/purge"
	"github.com/zulandar/cpg/internal/qc"
	"github.com/zulandar/cpg/internal/scheduler"
	"github.com/zulandar/cpg/internal/session"
	"github.com/zulandar/cpg/internal/stages"
	"github.com/zulandar/cpg/internal/transmit"
	"gorm.io/gorm"
)

const defaultConfigPath = "cpg.yaml"

// app is everything a command needs, wired from one config file.
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	logger  zerolog.Logger
	store   *session.GormStore
	factory *session.Factory
	alerts  *notify.AlertPublisher
	pub     notify.Publisher
	purger  *purge.Purger
	driver  *scheduler.Driver
}

func openApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfg, cmd.ErrOrStderr())
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.New(logOut, cfg.Log.Level, cfg.Log.Pretty)

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Climate.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Climate.Timezone, err)
	}

	alerts, err := newAlertPublisher(cfg.Alerts, logging.Component(logger, "alerts"))
	if err != nil {
		return nil, err
	}
	pub := notify.Fanout{
		notify.LogPublisher{Logger: logging.Component(logger, "notify")},
		notify.NewDBPublisher(gormDB, logger),
		alerts,
	}

	checker, err := qc.New(cfg.QC.Rules, logging.Component(logger, "qc"))
	if err != nil {
		return nil, fmt.Errorf("qc rules: %w", err)
	}
	formatter, err := stages.NewTemplateFormatter(cfg.Site, cfg.Stages.Products, loc, nil)
	if err != nil {
		return nil, err
	}

	txLogger := logging.Component(logger, "transmit")
	recorder := &transmit.DBRecorder{DB: gormDB}
	global := cfg.Global()

	store := session.NewGormStore(gormDB)
	factory := session.NewFactory(session.FactoryOpts{
		Store: store,
		Stages: session.Stages{
			Creator:        &stages.FileCreator{Dir: cfg.Stages.ReportDir, Location: loc},
			QualityChecker: checker,
			Finalizer:      &stages.Committer{Dir: cfg.Stages.CommitDir},
			Formatter:      formatter,
			Senders: map[climate.Source]session.Sender{
				climate.SourceNWWS: &transmit.NWWSSender{
					Site:     cfg.Site,
					Archive:  &transmit.FileArchive{Dir: cfg.Archive.Dir, Logger: txLogger},
					OUP:      &transmit.SpoolForwarder{Dir: cfg.OUP.Dir},
					Recorder: recorder,
					Logger:   txLogger,
				},
				climate.SourceNWR: &transmit.NWRSender{
					Dir:      cfg.NWR.Dir,
					CopyTo:   global.CopyNWRTo,
					Recorder: recorder,
					Logger:   txLogger,
				},
			},
		},
		Publisher: pub,
		Global:    global,
		Logger:    logging.Component(logger, "session"),
	})

	return &app{
		cfg:     cfg,
		db:      gormDB,
		logger:  logger,
		store:   store,
		factory: factory,
		alerts:  alerts,
		pub:     pub,
		purger: &purge.Purger{
			DB:                  gormDB,
			SessionRetention:    cfg.SessionRetention(),
			SentRecordRetention: cfg.SentRecordRetention(),
			Publisher:           pub,
			Logger:              logging.Component(logger, "purge"),
		},
		driver: &scheduler.Driver{
			Factory:   factory,
			Publisher: pub,
			Logger:    logging.Component(logger, "scheduler"),
		},
	}, nil
}

func newAlertPublisher(cfg config.AlertsConfig, logger zerolog.Logger) (*notify.AlertPublisher, error) {
	var sinks []notify.Sink
	if cfg.Slack.BotToken != "" {
		s, err := slack.New(slack.SinkOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Discord.BotToken != "" {
		s, err := discord.New(discord.SinkOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return notify.NewAlertPublisher(logger, sinks...), nil
}

// close waits for in-flight alert deliveries and releases the database.
func (a *app) close() {
	a.alerts.Wait()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// resolveProdType accepts a short name (am, mon, ...), an enumeration name
// (MONTHLY_RAD) or a numeric code.
func resolveProdType(s string) (climate.PeriodType, error) {
	if pt, ok := climate.PeriodTypeFromShort(s); ok {
		return pt, nil
	}
	for _, pt := range climate.SessionPeriodTypes {
		if pt.String() == s {
			return pt, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if pt, ok := climate.PeriodTypeFromValue(n); ok {
			return pt, nil
		}
	}
	return climate.PeriodOther, fmt.Errorf("unknown product type %q (want one of am, pm, mon, sea, ann, im)", s)
}
