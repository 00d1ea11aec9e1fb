package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/JIeeiroSst/cassutils/cassandra"
	"github.com/JIeeiroSst/cassutils/config"
	"github.com/JIeeiroSst/cassutils/health"
	"github.com/JIeeiroSst/cassutils/logger"
	"github.com/JIeeiroSst/cassutils/shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:          "cqlcheck",
		Short:        "Check and serve Cassandra connectivity",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.ParseEnv()
			if err != nil {
				return err
			}
			if configDir != "" {
				settings.Dir = configDir
			}
			sources, err := settings.Sources()
			if err != nil {
				return err
			}
			config.SetDefault(sources)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding cassandra.json or cassandra.yaml")

	root.AddCommand(newPingCmd(), newServeCmd())
	return root
}

func ping(ctx context.Context) (string, error) {
	c, err := cassandra.Instance(ctx)
	if err != nil {
		return "", err
	}
	return c.Ping(ctx)
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect once and print the server release version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cassandra.Close()

			ctx := logger.EnsureTraceID(cmd.Context())
			version, err := ping(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /health and /metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()
			if err := cassandra.RegisterMetrics(reg); err != nil {
				return err
			}

			router := gin.New()
			router.Use(gin.Recovery())
			health.Register(router, health.PingerFunc(ping))
			router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

			srv := &http.Server{Addr: addr, Handler: router}

			listener := shutdown.NewListener(timeout)
			listener.Register("cassandra", cassandra.ShutdownHook())
			listener.Register("http", srv.Shutdown)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Infof("cqlcheck listening on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("http server stopped: %v", err)
					return err
				}
				return nil
			})
			g.Go(func() error {
				return listener.Wait(ctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", shutdown.DefaultTimeout, "time allowed for shutdown hooks")
	return cmd
}
