// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command mautrix-skype is a Matrix-Skype puppeting bridge. It represents
// Skype users as Matrix ghost users and Skype conversations as portal rooms
// with deterministic aliases, translating messages in both directions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/event"

	"github.com/aiku/mautrix-skype/pkg/connector"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	log.Info().
		Str("tag", Tag).
		Str("commit", Commit).
		Str("build_time", BuildTime).
		Msg("Starting mautrix-skype")

	cfg, err := connector.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	kv, err := connector.NewSQLiteStore(cfg.Bridge.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open bridge database")
	}
	defer kv.Close()

	as, err := newAppService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up appservice")
	}

	skype := connector.NewSkypeClient(cfg.Skype.GatewayURL, cfg.Skype.Token, cfg.Skype.UserID, log)

	ns := cfg.Namespace()
	dispatcher := connector.NewDispatcher(connector.NewAppserviceMatrix(as, log), skype, log)
	store := connector.NewIdentityStore(kv, ns, dispatcher, log)
	as.QueryHandler = connector.NewBridgeQueryHandler(store, ns, log)
	profiles := connector.NewDisplayResolver(skype, cfg.FormatDisplayname, log)
	translator := connector.NewTranslator(store, profiles, dispatcher, ns, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := appservice.NewEventProcessor(as)
	ep.On(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		translator.HandleMatrixEvent(ctx, evt)
	})
	ep.On(event.StateMember, func(ctx context.Context, evt *event.Event) {
		translator.HandleMatrixEvent(ctx, evt)
	})
	go ep.Start(ctx)
	defer ep.Stop()

	go as.Start()

	skype.OnMessage(func(msg *connector.SkypeMessage) {
		go translator.HandleSkypeMessage(ctx, msg)
	})
	if err := skype.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Skype gateway")
	}
	defer skype.Disconnect()

	log.Info().Msg("Bridge started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")
	as.Stop()
}

// newAppService builds the configured appservice instance.
func newAppService(cfg *connector.Config, log zerolog.Logger) (*appservice.AppService, error) {
	reg, err := appservice.LoadRegistration(cfg.Appservice.Registration)
	if err != nil {
		return nil, fmt.Errorf("failed to load appservice registration: %w", err)
	}
	as, err := appservice.CreateFull(appservice.CreateOpts{
		Registration:     reg,
		HomeserverDomain: cfg.Homeserver.Domain,
		HomeserverURL:    cfg.Homeserver.Address,
		HostConfig: appservice.HostConfig{
			Hostname: cfg.Appservice.Hostname,
			Port:     cfg.Appservice.Port,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create appservice: %w", err)
	}
	as.Log = log.With().Str("component", "appservice").Logger()
	return as, nil
}
