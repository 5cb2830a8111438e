package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/pdscore/go-pdscore/pds"
	"github.com/pdscore/go-pdscore/pdsutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := &cli.Command{
		Name:  "pds",
		Usage: "atproto personal data server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "database connection URL (sqlite://path or postgres://...)",
				Value:   "sqlite://pds.db",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "hostname",
				Usage:   "public hostname of this PDS; also prefixes invite codes",
				Value:   "localhost",
				Sources: cli.EnvVars("PDS_HOSTNAME"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Output logs in JSON format",
				Sources: cli.EnvVars("LOG_JSON"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and metrics servers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "bind",
						Usage:   "HTTP server listen address",
						Value:   ":2583",
						Sources: cli.EnvVars("PDS_BIND"),
					},
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Metrics HTTP server listen address",
						Value:   ":9464",
						Sources: cli.EnvVars("METRICS_ADDR"),
					},
					&cli.StringFlag{
						Name:    "admin-password",
						Usage:   "password for moderator endpoints (basic auth user \"admin\"); empty disables them",
						Sources: cli.EnvVars("PDS_ADMIN_PASSWORD"),
					},
				},
				Action: runServe,
			},
			{
				Name:      "create-account",
				Usage:     "register a hosted account",
				ArgsUsage: "<did> <handle>",
				Action:    runCreateAccount,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func configFromCommand(cmd *cli.Command) pds.Config {
	return pds.Config{
		DatabaseURL:   cmd.String("database-url"),
		Bind:          cmd.String("bind"),
		MetricsAddr:   cmd.String("metrics-addr"),
		Hostname:      cmd.String("hostname"),
		AdminPassword: cmd.String("admin-password"),
		LogLevel:      cmd.String("log-level"),
		LogJSON:       cmd.Bool("log-json"),
	}
}

func setupLogger(cfg pds.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openStore(ctx context.Context, cfg pds.Config, logger *slog.Logger) (*pds.Store, error) {
	conn, err := pds.NewConnector(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	return pds.NewStore(ctx, conn, cfg.Hostname, pdsutil.SystemClock{}, pdsutil.SecureRandom, logger)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := configFromCommand(cmd)
	logger := setupLogger(cfg)
	if cfg.AdminPassword == "" {
		logger.Warn("no admin password configured, moderator endpoints are disabled")
	}

	otelShutdown, err := setupOTel(ctx, cfg.Hostname)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer otelShutdown(context.Background())

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	server := pds.NewServer(store, cfg, logger)
	g := new(errgroup.Group)

	g.Go(server.Run)

	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
		return http.ListenAndServe(cfg.MetricsAddr, mux)
	})

	return g.Wait()
}

func runCreateAccount(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected <did> <handle>")
	}
	cfg := configFromCommand(cmd)
	logger := setupLogger(cfg)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	acct, err := store.CreateAccount(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", acct.DID, acct.Handle, acct.CreatedAt)
	return nil
}
