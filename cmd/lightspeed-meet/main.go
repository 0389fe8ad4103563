package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-meet/agent"
	"github.com/tcriess/lightspeed-meet/auth"
	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/globals"
	"github.com/tcriess/lightspeed-meet/meeting"
	"github.com/tcriess/lightspeed-meet/notify"
	"github.com/tcriess/lightspeed-meet/persistence"
	"github.com/tcriess/lightspeed-meet/roomservice"
	"github.com/tcriess/lightspeed-meet/server"
	"github.com/tcriess/lightspeed-meet/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8080", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Fatal("interrupted!")
	}()

	pflag.CommandLine.AddFlagSet(config.GetFlagSet())
	pflag.Parse()
	log.SetFlags(0)

	// local overrides for development, ignored when absent
	_ = godotenv.Load()

	globalConfig, err := config.ReadConfiguration(*configPath, pflag.CommandLine)
	if err != nil {
		panic(err)
	}

	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	if globalConfig.LockPath != "" {
		fileLock := flock.New(globalConfig.LockPath)
		locked, err := fileLock.TryLock()
		if err != nil {
			panic(err)
		}
		if !locked {
			log.Fatalf("another instance already holds %s", globalConfig.LockPath)
		}
		defer fileLock.Unlock()
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	defer persister.Close()

	authService, err := auth.NewService(globalConfig, persister)
	if err != nil {
		panic(err)
	}
	if err := authService.SeedHosts(globalConfig); err != nil {
		panic(err)
	}

	rooms, err := roomservice.New(globalConfig)
	if err != nil {
		panic(err)
	}
	agentClient := agent.New(globalConfig)
	notifier := notify.New(globalConfig, persister)
	registry := ws.NewRegistry()
	manager := meeting.NewManager(globalConfig, persister, rooms, agentClient, notifier, registry)

	sweeper := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := sweeper.AddFunc(globalConfig.SweepSpec, func() {
		manager.CloseEndedMeetings(context.Background())
	}); err != nil {
		panic(err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(globalConfig, manager, authService, registry)
	http.Handle("/", srv.Router())

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}
