package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/layer-3/gatekeeper/adapters/metrics"
	"github.com/layer-3/gatekeeper/adapters/password"
	"github.com/layer-3/gatekeeper/adapters/tokenizer"
	"github.com/layer-3/gatekeeper/adapters/wallet"
	"github.com/layer-3/gatekeeper/service"
	transport "github.com/layer-3/gatekeeper/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gatekeeper HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackends(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := b.prepare(ctx); err != nil {
				return err
			}
		}

		signKey, ephemeral, err := cfg.SigningKey()
		if err != nil {
			return err
		}
		if ephemeral {
			logger.Warn().Msg("no token.signing_key_file configured, using an ephemeral key; tokens will not survive a restart")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewCollector(reg)

		opts := []service.Option{
			service.WithLogger(logger.With().Str("component", "auth").Logger()),
			service.WithMetrics(collector),
		}
		if b.publisher != nil {
			opts = append(opts, service.WithPublisher(b.publisher))
		}

		authService := service.NewAuthService(
			b.identities,
			b.ledger,
			tokenizer.NewJWTTokenizer(signKey, tokenizer.WithIssuer(cfg.Token.Issuer)),
			password.NewHasher(cfg.Password),
			wallet.NewEthereumRecoverer(),
			cfg.Auth,
			opts...,
		)

		if cfg.Reset.ExposeToken {
			logger.Warn().Msg("reset.expose_token is enabled, reset tokens are returned to callers")
		}

		gin.SetMode(gin.ReleaseMode)
		router := transport.SetupRouter(authService, transport.RouterConfig{
			Logger:           logger.With().Str("component", "http").Logger(),
			Metrics:          collector,
			Gatherer:         reg,
			ExposeResetToken: cfg.Reset.ExposeToken,
		})

		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info().
				Str("addr", cfg.HTTP.Addr).
				Str("identity_driver", cfg.Identity.Driver).
				Str("nonce_driver", cfg.Nonce.Driver).
				Msg("starting server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
		}
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info().Msg("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":9000", "Listen address")
	_ = viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))

	serveCmd.Flags().Bool("migrate", false, "Create the database schema and indexes before serving")

	rootCmd.AddCommand(serveCmd)
}
