package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/trogers1052/options-monitor/internal/collector"
	"github.com/trogers1052/options-monitor/internal/config"
	"github.com/trogers1052/options-monitor/internal/database"
	"github.com/trogers1052/options-monitor/internal/kafka"
	"github.com/trogers1052/options-monitor/internal/logging"
	"github.com/trogers1052/options-monitor/internal/models"
)

const defaultProject = "IBIT_Call_Monitor"

var log zerolog.Logger

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "collector",
		Usage: "captures daily option quotes for the monitor dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			log = logging.New(os.Stderr, c.String("log-level"), true)
			return nil
		},
		Commands: []*cli.Command{
			captureCommand,
			greeksCommand,
			pruneCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var projectFlag = &cli.StringFlag{
	Name:  "project",
	Value: defaultProject,
	Usage: "project the quotes belong to",
}

var captureCommand = &cli.Command{
	Name:  "capture",
	Usage: "quote every position and append the rows to the daily CSV",
	Flags: []cli.Flag{
		projectFlag,
		&cli.StringFlag{
			Name:    "gateway",
			Value:   collector.DefaultGatewayURL,
			EnvVars: []string{"IBKR_GATEWAY_URL"},
			Usage:   "client portal gateway API root",
		},
		&cli.StringFlag{
			Name:  "symbol",
			Value: "IBIT",
		},
		&cli.StringSliceFlag{
			Name:  "position",
			Usage: "strike:expiration:cost, repeatable",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Value: collector.DefaultRiskFreeRate,
			Usage: "risk free rate for greeks",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "capture even when the market is closed",
		},
		&cli.StringFlag{
			Name:  "out",
			Value: "docs/projects/" + defaultProject + "/data/ibit_calls.csv",
			Usage: "CSV file to merge the rows into, empty to skip",
		},
		&cli.BoolFlag{
			Name:  "db",
			Usage: "also upsert the rows into postgres (DB_* settings)",
		},
		&cli.BoolFlag{
			Name:  "kafka",
			Usage: "also publish QUOTE_CAPTURED events (KAFKA_* settings)",
		},
	},
	Action: capture,
}

func capture(c *cli.Context) error {
	positions := collector.DefaultPositions()
	if values := c.StringSlice("position"); len(values) > 0 {
		positions = positions[:0]
		for _, arg := range values {
			pos, err := collector.ParsePosition(arg)
			if err != nil {
				return err
			}
			positions = append(positions, pos)
		}
	}

	col := collector.New(collector.NewGateway(c.String("gateway")), c.String("symbol"), positions, c.Float64("rate"), log)
	rows, err := col.Capture(c.Context, c.Bool("force"))
	if err != nil {
		return err
	}

	project := c.String("project")
	cfg := config.Load()

	if out := c.String("out"); out != "" {
		total, err := collector.AppendDaily(out, rows)
		if err != nil {
			return err
		}
		log.Info().Str("file", out).Int("rows", total).Msg("saved daily data")
	}

	if c.Bool("db") {
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.UpsertQuotes(c.Context, project, rows); err != nil {
			return err
		}
		log.Info().Int("rows", len(rows)).Msg("stored quotes")
	}

	if c.Bool("kafka") {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.QuoteTopic, cfg.Kafka.SnapshotTopic)
		defer producer.Close()
		for _, row := range rows {
			if err := producer.PublishQuoteCaptured(c.Context, project, "collector", row); err != nil {
				return err
			}
		}
		log.Info().Int("events", len(rows)).Str("topic", cfg.Kafka.QuoteTopic).Msg("published quotes")
	}

	return json.NewEncoder(os.Stdout).Encode(rows)
}

var greeksCommand = &cli.Command{
	Name:      "greeks",
	Usage:     "compute Black-Scholes call greeks",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		&cli.Float64Flag{Name: "spot", Required: true},
		&cli.Float64Flag{Name: "strike", Required: true},
		&cli.StringFlag{Name: "expiration", Required: true, Usage: "YYYY-MM-DD"},
		&cli.Float64Flag{Name: "iv", Required: true, Usage: "implied volatility, 0.55 for 55%"},
		&cli.Float64Flag{Name: "rate", Value: collector.DefaultRiskFreeRate},
	},
	Action: func(c *cli.Context) error {
		tte, err := collector.TimeToExpiration(c.String("expiration"), time.Now())
		if err != nil {
			return err
		}
		g := collector.BlackScholes(c.Float64("spot"), c.Float64("strike"), tte, c.Float64("rate"), c.Float64("iv"))

		return json.NewEncoder(os.Stdout).Encode(struct {
			TimeToExpiration float64 `json:"time_to_expiration"`
			collector.Greeks
		}{tte, g})
	},
}

var pruneCommand = &cli.Command{
	Name:  "prune",
	Usage: "delete stored quotes older than a retention window",
	Flags: []cli.Flag{
		projectFlag,
		&cli.DurationFlag{
			Name:  "older-than",
			Value: 2 * 365 * 24 * time.Hour,
		},
	},
	Action: func(c *cli.Context) error {
		cfg := config.Load()
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()

		cutoff := time.Now().In(models.MarketTimezone).Add(-c.Duration("older-than"))
		n, err := db.DeleteQuotesBefore(c.Context, c.String("project"), cutoff)
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned quotes")
		return nil
	},
}
