// Command stokvel-deploy deploys the Stokvel token into the configured store,
// or reports the existing deployment, and prints the token details.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/config"
	"github.com/xraph/stokvel/event"
	"github.com/xraph/stokvel/host"
	"github.com/xraph/stokvel/observability"
	"github.com/xraph/stokvel/token"
)

func main() {
	var (
		configPath    string
		creatorFlag   string
		confirmations int
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&creatorFlag, "creator", "", "Creator address (overrides token.creator)")
	flag.IntVar(&confirmations, "confirmations", 1, "Read-back checks of the genesis record before reporting success")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, configPath, creatorFlag, confirmations); err != nil {
		log.Fatalf("stokvel-deploy: %v", err)
	}
}

func run(ctx context.Context, out io.Writer, configPath, creatorFlag string, confirmations int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if creatorFlag != "" {
		cfg.Token.Creator = creatorFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	s, err := config.OpenStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	opts := []stokvel.Option{
		stokvel.WithLogger(logger),
		stokvel.WithHookTimeout(cfg.HookTimeout),
	}
	if cfg.Metrics.Enabled {
		factory := observability.NewPrometheusFactory(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)
		opts = append(opts, stokvel.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	l := stokvel.New(s, opts...)
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("start ledger: %w", err)
	}
	defer l.Stop()

	exec := host.NewExecutor(l,
		host.WithLogger(logger),
		host.WithQueueSize(cfg.Executor.QueueSize),
		host.WithRateLimit(cfg.Executor.RateLimit, cfg.Executor.RateBurst),
	)
	if err := exec.Start(ctx); err != nil {
		return err
	}
	defer exec.Stop()

	fmt.Fprintln(out, "Deploying Stokvel Token...")

	if !l.Deployed() {
		creator, ok, err := cfg.Token.CreatorAddress()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no creator configured: set token.creator, STOKVEL_CREATOR or -creator")
		}
		if _, err := exec.Submit(ctx, host.Deploy(creator)); err != nil {
			return fmt.Errorf("deploy: %w", err)
		}
	} else {
		fmt.Fprintln(out, "Token already deployed; reporting existing deployment.")
	}

	meta, err := l.Metadata()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Stokvel Token deployed to: %s\n", meta.DeploymentID)

	if confirmations > 0 {
		fmt.Fprintln(out, "Waiting for confirmations...")
		seq, err := confirm(ctx, l, confirmations)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Genesis confirmed at event sequence %d.\n", seq)
	}

	fmt.Fprintln(out, "Deployment completed!")
	fmt.Fprintln(out, "Token details:")
	fmt.Fprintf(out, "- Name: %s\n", l.Name())
	fmt.Fprintf(out, "- Symbol: %s\n", l.Symbol())
	fmt.Fprintf(out, "- Total Supply: %s\n", l.TotalSupply())
	fmt.Fprintf(out, "- Creator: %s\n", meta.Creator.Hex())
	fmt.Fprintf(out, "- Deployed At: %s\n", meta.DeployedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// confirm re-reads the genesis Transfer from the store n times and checks
// that the committed balances still sum to the total supply.
func confirm(ctx context.Context, l *stokvel.Ledger, n int) (uint64, error) {
	var seq uint64
	for i := 0; i < n; i++ {
		events, err := l.Events(ctx, event.QueryOpts{Kind: event.KindTransfer, Limit: 1})
		if err != nil {
			return 0, err
		}
		if len(events) == 0 || !events[0].Amount.Equal(token.TotalSupply()) {
			return 0, errors.New("genesis transfer not found in the event log")
		}
		if _, err := l.VerifySupply(ctx); err != nil {
			return 0, err
		}
		seq = events[0].Sequence
	}
	return seq, nil
}
