package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/cache"
	"github.com/briangreenhill/leaksmap/internal/aggregator"
	"github.com/briangreenhill/leaksmap/internal/config"
	"github.com/briangreenhill/leaksmap/internal/logging"
	"github.com/briangreenhill/leaksmap/internal/providers"
)

const version = "leaksmap v0.1.0"

// looker is the part of the aggregator the CLI needs
type looker interface {
	Lookup(ctx context.Context, email string) (*aggregator.Result, error)
	LookupUsername(ctx context.Context, username string) (*aggregator.Result, error)
}

func main() {
	if err := runCLI(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCLI(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("no command given")
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(out)
	case "version", "--version", "-v":
		fmt.Fprintln(out, version)
	case "check", "username":
		query, asJSON, err := parseQueryArgs(args[0], args[1:])
		if err != nil {
			return err
		}
		agg, err := setupAggregator()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if args[0] == "username" {
			return runUsername(ctx, agg, query, asJSON, out)
		}
		return runCheck(ctx, agg, query, asJSON, out)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}

	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: leaksmap <command> [options]")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  check <email> [--json]     Look up breaches for an email address")
	fmt.Fprintln(out, "  username <name> [--json]  Look up breaches for a username (LeakCheck only)")
	fmt.Fprintln(out, "  version                    Show version")
	fmt.Fprintln(out, "  help                       Show this help message")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  LEAKCHECK_API_KEY          Your LeakCheck API key")
	fmt.Fprintln(out, "  HIBP_API_KEY               Your HaveIBeenPwned API key")
	fmt.Fprintln(out, "  LOOKUP_TIMEOUT             Overall lookup timeout (default 30s)")
	fmt.Fprintln(out, "  LOG_LEVEL                  Log level written to stderr (default info)")
}

// parseQueryArgs reads the single email or username a lookup command takes
func parseQueryArgs(cmd string, args []string) (query string, asJSON bool, err error) {
	for _, a := range args {
		switch a {
		case "--json", "-j":
			asJSON = true
		default:
			if query != "" {
				return "", false, fmt.Errorf("unexpected argument: %s", a)
			}
			query = a
		}
	}
	if query == "" {
		if cmd == "username" {
			return "", false, errors.New("usage: leaksmap username <name> [--json]")
		}
		return "", false, errors.New("usage: leaksmap check <email> [--json]")
	}
	return query, asJSON, nil
}

// setupAggregator wires configured providers and a process-local cache
func setupAggregator() (*aggregator.Aggregator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr}, cfg.LogLevel)
	registry, err := providers.Setup(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := cache.NewMemory[[]breach.Record](cache.WithDefaultTTL(cfg.CacheTTL))
	return aggregator.New(store, registry.All(),
		aggregator.WithCacheTTL(cfg.CacheTTL),
		aggregator.WithLookupTimeout(cfg.LookupTimeout),
		aggregator.WithLogger(logger),
	), nil
}

func runCheck(ctx context.Context, agg looker, email string, asJSON bool, out io.Writer) error {
	res, err := agg.Lookup(ctx, email)
	return report(res, err, asJSON, out)
}

func runUsername(ctx context.Context, agg looker, username string, asJSON bool, out io.Writer) error {
	res, err := agg.LookupUsername(ctx, username)
	return report(res, err, asJSON, out)
}

func report(res *aggregator.Result, err error, asJSON bool, out io.Writer) error {
	if err != nil {
		var unavailable *breach.AllProvidersUnavailableError
		if errors.As(err, &unavailable) {
			for _, msg := range unavailable.Messages() {
				fmt.Fprintf(out, "provider failed: %s\n", msg)
			}
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printTable(out, res)
}

func printTable(out io.Writer, res *aggregator.Result) error {
	subject := res.Email
	if subject == "" {
		subject = res.Username
	}
	if len(res.Breaches) == 0 {
		fmt.Fprintf(out, "No breaches found for %s\n", subject)
	} else {
		fmt.Fprintf(out, "%d breach(es) found for %s\n\n", len(res.Breaches), subject)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Service\tDate\tData\tSource")
		fmt.Fprintln(w, "-------\t----\t----\t------")
		for _, b := range res.Breaches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ServiceName, b.BreachDate, b.DataType, b.Source)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warn.Message)
	}
	return nil
}
