// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tarantool/small"
)

// actorCollector proxies prometheus.Collector.Collect through an
// allocatorActor so scrapes never touch the allocator from the HTTP
// server's own goroutine.
type actorCollector struct {
	actor *allocatorActor
	inner *small.Collector
}

func (c *actorCollector) Describe(ch chan<- *prometheus.Desc) { c.inner.Describe(ch) }

func (c *actorCollector) Collect(ch chan<- prometheus.Metric) {
	c.actor.Do(func() { c.inner.Collect(ch) })
}

func newServeCommand(v *viper.Viper, logger *zap.Logger) *cobra.Command {
	var (
		addr        string
		tickSeconds int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a synthetic allocation workload and export its stats over /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			actor := newAllocatorActor()
			alloc, _ := newAllocator(cfg, logger)
			wlCtx := small.InjectContextArena(ctx, newScratchArena(cfg))
			ready := make(chan struct{})
			go func() {
				close(ready)

				wl := newWorkload(alloc)
				tick := time.NewTicker(time.Duration(tickSeconds) * time.Second)
				defer tick.Stop()

				for {
					select {
					case fn := <-actor.reqs:
						fn()
					case <-tick.C:
						wl.step(wlCtx)
					case <-ctx.Done():
						return
					}
				}
			}()
			<-ready

			reg := prometheus.NewRegistry()
			if err := reg.Register(&actorCollector{actor: actor, inner: small.NewCollector(alloc, "allocstat", "small")}); err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			srv := &http.Server{Addr: addr, Handler: mux}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			logger.Info("allocstat serving", zap.String("addr", addr))

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9191", "address to serve /metrics on")
	cmd.Flags().IntVar(&tickSeconds, "tick-seconds", 2, "interval between workload iterations")
	return cmd
}
