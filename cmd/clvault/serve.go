package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/avm"
	"github.com/elys-network/clvault/internal/config"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/rpc"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node: vault state, web API, gRPC service and the automated rebalancer",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("config", "", "config file (yaml, toml or json)")
	f.String("chain-id", "clvault-local", "chain id of a default genesis")
	f.String("data-dir", "", "state directory; empty keeps the state in memory")
	f.String("genesis-file", "", "JSON genesis document")
	f.String("log-level", "info", "trace, debug, info, warn or error")
	f.String("http-addr", ":8080", "web API listen address")
	f.String("grpc-addr", ":9090", "gRPC listen address")
	f.Bool("avm-enabled", true, "run the automated rebalancer")
	f.Duration("rebalance-interval", time.Minute, "automated rebalance period")
	f.Bool("simulation-api", true, "expose the pool price and fee routes")
	return cmd
}

func initLogging() error {
	if config.LogFile == "" {
		logger.Initialize(config.LogLevel)
		return nil
	}
	file, err := logger.FileWriter(config.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	logger.InitializeWithWriter(config.LogLevel, zerolog.MultiLevelWriter(console, file))
	return nil
}

func initJournal(ctx context.Context) (state.Journal, func(), error) {
	if !config.DBEnabled {
		log.Info().Msg("No database configured, journal disabled")
		return state.NewNop(), func() {}, nil
	}
	if err := state.InitDB(config.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := state.EnsureSchema(ctx); err != nil {
		state.CloseDB()
		return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	return state.Postgres{}, state.CloseDB, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	configFile, _ := cmd.Flags().GetString("config")
	if err := config.ReadConfigFile(v, configFile); err != nil {
		return err
	}
	if err := config.LoadConfig(v); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := initLogging(); err != nil {
		return err
	}
	log.Info().Str("chain_id", config.ChainID).Msg("clvault node starting...")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genesis, err := config.LoadGenesis()
	if err != nil {
		return fmt.Errorf("failed to load genesis: %w", err)
	}
	journal, closeJournal, err := initJournal(ctx)
	if err != nil {
		return err
	}
	defer closeJournal()

	node, err := app.New(genesis, app.Options{DataDir: config.DataDir, Journal: journal})
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close state")
		}
	}()

	webServer, err := web.NewWebServer(web.Config{
		Addr:       config.HTTPAddr,
		Node:       node,
		Journal:    journal,
		Simulation: config.SimulationAPI,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return webServer.Serve(ctx) })
	g.Go(func() error { return rpc.Serve(ctx, rpc.NewGRPCServer(node), config.GRPCAddr) })

	if config.AVMEnabled {
		rebalancer, err := avm.NewAVM(avm.Config{Host: node, Journal: journal, Rebalancer: config.RebalancerAddress})
		if err != nil {
			return fmt.Errorf("failed to create AVM instance: %w", err)
		}
		log.Info().Str("interval", config.RebalanceInterval.String()).Msg("Starting AVM main loop")
		g.Go(func() error {
			rebalancer.RunLoop(ctx, config.RebalanceInterval)
			return nil
		})
	}

	err = g.Wait()
	log.Info().Int64("height", node.Height()).Msg("clvault node stopped")
	return err
}
