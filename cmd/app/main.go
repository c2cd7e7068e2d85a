package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/rulefile"
	"github.com/atvirokodosprendimai/ruleapi/internal/app"
	"github.com/atvirokodosprendimai/ruleapi/internal/logging"
	"github.com/atvirokodosprendimai/ruleapi/rule"
)

var errValidationFailed = errors.New("validation failed")

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "ruleapi",
		Usage: "Declarative JSON validation rules as a library and HTTP service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("RULEAPI_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
			exportCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("RULEAPI_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./ruleapi.sqlite",
				Sources: cli.EnvVars("RULEAPI_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("RULEAPI_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("RULEAPI_BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("RULEAPI_WEBHOOK_URL"),
				Usage:   "Deliver validation events to this URL instead of the log",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("RULEAPI_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	logger, err := logging.New(c.String("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := app.Config{
		Addr:             c.String("addr"),
		DBPath:           c.String("db-path"),
		BootstrapAPIKey:  c.String("bootstrap-api-key"),
		BootstrapKeyName: c.String("bootstrap-key-name"),
		WebhookURL:       c.String("webhook-url"),
		WebhookSecret:    c.String("webhook-secret"),
	}

	server, closer, err := app.NewServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error("close resources", zap.Error(closeErr))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		logger.Info("received signal", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Validate a JSON document against a rule file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rules",
				Required: true,
				Usage:    "Rule definition file (.json, .yaml or .yml)",
			},
			&cli.StringFlag{
				Name:  "input",
				Value: "-",
				Usage: "JSON document to validate, - for stdin",
			},
		},
		Action: check,
	}
}

func check(_ context.Context, c *cli.Command) error {
	_, r, err := rulefile.Load(c.String("rules"))
	if err != nil {
		return err
	}

	data, err := readInput(c.String("input"), c.Root().Reader)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	value, err := rule.ValidateJSON(data, r)
	if err != nil {
		if err := writeIndented(out, map[string]any{"valid": false, "violations": rule.Violations(err)}); err != nil {
			return err
		}
		return errValidationFailed
	}
	return writeIndented(out, map[string]any{"valid": true, "value": value})
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Print the JSON Schema document for a rule file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rules",
				Required: true,
				Usage:    "Rule definition file (.json, .yaml or .yml)",
			},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			_, r, err := rulefile.Load(c.String("rules"))
			if err != nil {
				return err
			}
			return writeIndented(c.Root().Writer, r)
		},
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeIndented(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("indent output: %w", err)
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}
