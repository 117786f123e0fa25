package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/metapromptlabs/metaprompt/internal/logging"
	"github.com/metapromptlabs/metaprompt/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metaprompt HTTP server",
	Long:  `Starts the HTTP boundary: POST /v1/process runs the pipeline, GET /v1/sessions/{id}/memory inspects session memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		warnIfMissingKeys(cfg)

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		logger := logging.New(verbose)
		defer logger.Sync()

		eng, mem, closeStore, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, eng, mem, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "metaprompt server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Memory: %s\n", cfg.Memory.Path)
		fmt.Fprintf(os.Stderr, "  Safety: %s (ruleset %s)\n", cfg.Safety.DefaultLevel, cfg.Safety.RulesetVersion)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
