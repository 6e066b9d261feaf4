package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/Mutter0815/MassTexter/internal/gateway"
	"github.com/Mutter0815/MassTexter/internal/store"
	"github.com/Mutter0815/MassTexter/pkg/config"
	"github.com/Mutter0815/MassTexter/pkg/db"
	"github.com/Mutter0815/MassTexter/pkg/logx"
	"github.com/Mutter0815/MassTexter/pkg/rmq"
	"github.com/Mutter0815/MassTexter/services/dispatcher/dispatch"
)

func main() {
	logx.Init()
	defer logx.Sync()

	config.MustLoadDispatcher()
	cfg := config.Dispatcher

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer sqlDB.Close()

	st := store.New(sqlDB)
	gw := gateway.NewTwilio(cfg.Gateway, cfg.SendTimeout)

	var events dispatch.Events
	if cfg.RMQURL != "" {
		pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.EventsQueue)
		if err != nil {
			logx.L().Fatalw("rmq_init_error", "error", err)
		}
		defer pub.Close()
		events = pub
	} else {
		logx.L().Warnw("events_disabled", "reason", "RMQ_URL not set")
	}

	d := dispatch.NewDispatcher(st, gw, events, gw.From(), cfg.SendTimeout, cfg.SendConcurrency)
	sched := dispatch.NewScheduler(st, d, cfg.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.L().Fatalw("scheduler_error", "error", err)
	}
	logx.L().Infow("dispatcher stopped gracefully")
}
