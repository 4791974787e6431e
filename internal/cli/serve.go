package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Chative-analytics/server/internal/transport/httpapi"
)

func newServeCmd(envFile *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP endpoint",
		Long: `Serve POST /api/messages for the chat channel, the generated charts under
GET /charts/ and a liveness probe on GET /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg *AppConfig) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := httpapi.NewHandler(a.assistant, cfg.Artifacts.ChartsDir, cfg.HTTP.AuthToken)
	return httpapi.NewServer(cfg.HTTP, handler).Run(ctx)
}
