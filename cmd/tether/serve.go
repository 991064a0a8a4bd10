package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tether"
	"pkt.systems/tether/internal/appconfig"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noQR bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the remote access gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			if cfgPath == "" {
				defaultPath, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				cfgPath = defaultPath
			}
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			server, err := tether.New(tether.ConfigFromApp(cfg), tether.Deps{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := os.Stat(cfgPath); err == nil {
				if err := appconfig.Watch(ctx, cfgPath, func(next appconfig.Config) {
					server.UpdateRateLimit(tether.ConfigFromApp(next).HTTP.RateLimit)
				}); err != nil {
					logger.Warn("config watch failed", "config", cfgPath, "err", err)
				}
			} else {
				logger.Info("config watch skipped", "config", cfgPath, "reason", "file not found")
			}

			if err := server.Start(ctx); err != nil {
				return err
			}
			url, err := accessURL(server.Addr().String(), server.SecurityToken(), lanHost())
			if err != nil {
				logger.Warn("access url failed", "err", err)
			} else {
				printAccessURL(cmd.OutOrStdout(), url, !noQR)
			}
			logger.Info("http server listening", "addr", server.Addr().String())
			waitErr := server.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("server stop failed", "err", err)
			}
			return waitErr
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not render the access URL as a QR code")
	return cmd
}
