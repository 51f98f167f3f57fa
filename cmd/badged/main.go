package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"badgeforge/config"
	"badgeforge/core/badge"
	"badgeforge/core/events"
	"badgeforge/crypto"
	"badgeforge/observability/logging"
	"badgeforge/rpc"
	"badgeforge/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BADGE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup(logging.Options{Service: "badged", Env: env, File: cfg.LogFile})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	instanceKey, err := crypto.LoadFromKeystore(cfg.InstanceKeystorePath, os.Getenv("BADGE_INSTANCE_PASS"))
	if err != nil {
		panic(fmt.Sprintf("Failed to load instance key: %v", err))
	}
	instance := instanceKey.PubKey().Address()

	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		logger.Error("Invalid treasury", slog.Any("error", err))
		os.Exit(1)
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		logger.Error("Invalid owner", slog.Any("error", err))
		os.Exit(1)
	}
	issuer, err := cfg.IssuerAddress()
	if err != nil {
		logger.Error("Invalid issuer", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := badge.NewEngine(db, badge.Params{
		Owner:          owner.Raw(),
		Treasury:       treasury.Raw(),
		Issuer:         issuer.Raw(),
		FeeBasisPoints: cfg.FeeBasisPoints,
		ChainID:        cfg.ChainID,
		Instance:       instance.Raw(),
	})
	if err != nil {
		logger.Error("Failed to construct engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetEmitter(logEmitter{logger: logger})

	logger.Info("engine ready",
		"network", cfg.NetworkName,
		"chainId", cfg.ChainID,
		"instance", instance.String(),
		"treasury", treasury.String(),
		"issuer", issuer.String(),
		"feeBasisPoints", cfg.FeeBasisPoints,
	)

	server := rpc.NewServer(engine, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// logEmitter forwards engine events to the structured log. Indexers and
// UIs consume the same stream from the log pipeline.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(event events.Event) {
	attrs := event.Attributes()
	args := make([]any, 0, len(attrs)*2+2)
	args = append(args, "event", event.EventType())
	for k, v := range attrs {
		args = append(args, k, v)
	}
	l.logger.Info("engine event", args...)
}
