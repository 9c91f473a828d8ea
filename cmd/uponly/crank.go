// cmd/uponly/crank.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/cranker"
	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/logger"
)

func newCrankCmd(a *app) *cobra.Command {
	var (
		identity string
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "crank",
		Short: "Settle matured locks, periodically or once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.keystore.Get(identity)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}

			l := logger.WithOperation(a.logger, "crank")
			c := cranker.New(eng, w.PublicKey, a.cfg.Cranker, l, a.collector)

			if once {
				res, err := c.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "found %d, settled %d, skipped %d, failed %d, paid %s\n",
					res.Found, res.Settled, res.Skipped, res.Failed, ledger.FormatPayment(res.Paid))
				return nil
			}

			if a.cfg.Metrics.Listen != "" {
				srv := &http.Server{
					Addr:              a.cfg.Metrics.Listen,
					Handler:           metricsMux(a),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					l.Info("Metrics server listening", zap.String("addr", srv.Addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						l.Error("Metrics server failed", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			l.Info("Cranker started", zap.Stringer("identity", w.PublicKey))
			err = c.Run(ctx)
			l.Info("Cranker stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&identity, "wallet", "cranker", "submitting wallet")
	cmd.Flags().BoolVar(&once, "once", false, "settle what is matured now and exit")
	return cmd
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.collector.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
