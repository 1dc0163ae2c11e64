// Command cmoctl runs the CMO agent tools from a terminal and manages stored
// integration tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cmo/internal/bootstrap"
	"cmo/internal/infra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "cmoctl",
	Short: "Run CMO agent tools from the command line",
	Long: `cmoctl runs the same tools the API serves, against the configured
database and integrations. Configuration comes from the environment or a
.env file in the working directory.

Examples:
  cmoctl keywords --idea "devops metrics" --limit 20
  cmoctl article --title "DORA metrics explained" --keyword "dora metrics"
  cmoctl content-plan --topic "ci speed" --period 28d
  cmoctl social-batch --target 12 --platform linkedin --platform x
  cmoctl set-token --provider exa --token exa_...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(contentPlanCmd)
	rootCmd.AddCommand(socialBatchCmd)
	rootCmd.AddCommand(setTokenCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		stop()
		os.Exit(1)
	}
}

// session holds the database pool and, when requested, the services for one
// command run.
type session struct {
	pool     *pgxpool.Pool
	runner   *infra.SQLRunner
	services *bootstrap.Services
	logger   zerolog.Logger
}

func openSession(ctx context.Context, withServices bool) (*session, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(io.Discard)
	if verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{pool: pool, runner: infra.NewSQLRunner(pool, logger), logger: logger}
	if withServices {
		s.services, err = bootstrap.New(ctx, cfg, s.runner, &s.logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() {
	if s.services != nil {
		_ = s.services.Close()
	}
	s.pool.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
