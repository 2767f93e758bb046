//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ColinIanKing/intel-lpmd/pkg/config"
	"github.com/ColinIanKing/intel-lpmd/pkg/monitor"
	"github.com/ColinIanKing/intel-lpmd/pkg/spike"
	"github.com/ColinIanKing/intel-lpmd/pkg/system/cpustat"
	"github.com/ColinIanKing/intel-lpmd/pkg/system/gfx"
	"github.com/ColinIanKing/intel-lpmd/pkg/telemetry"
)

type opts struct {
	configPath     string
	listen         string
	spikeThreshold int
	debug          bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "lpmd",
		Short: "Low power mode decision daemon",
		Long: `lpmd watches CPU and graphics utilization and moves the platform
between its low-power and performance operating profiles. Profile
selection, thresholds and poll intervals come from a YAML config;
decisions are logged and optionally exported as Prometheus metrics.

Examples:
  lpmd -c /etc/lpmd/lpmd.yaml
  lpmd -c lpmd.yaml --listen :9100 --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	root.Flags().StringVarP(&o.configPath, "config", "c", "/etc/lpmd/lpmd.yaml", "configuration file")
	root.Flags().StringVar(&o.listen, "listen", "", "address for the Prometheus /metrics endpoint (empty = disabled)")
	root.Flags().IntVar(&o.spikeThreshold, "spike-threshold", 90, "per-core busy percent treated as a load spike")
	root.Flags().BoolVar(&o.debug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(o.configPath, logger)
	if err != nil {
		return err
	}

	store := cpustat.NewStore(cpustat.NewProcStatSource(), runtime.NumCPU(), logger)
	tracker := gfx.NewTracker(logger)
	act := monitor.NewLogActuator(logger)
	mon := monitor.New(cfg, store, tracker, act, logger)

	det := spike.New()
	det.DemoteActive = act.InLowPower

	reg := prometheus.NewRegistry()
	tel := telemetry.New(reg)
	mon.SetObserver(tel)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if o.listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: o.listen, Handler: mux}

		g.Go(func() error {
			logger.Info("metrics endpoint up", "addr", o.listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		return tickLoop(ctx, o, mon, det, tel, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// tickLoop drives the monitor at the interval each tick hands back.
// Per-core load above the spike threshold between ticks feeds the
// burst detector, whose verdict is exported alongside the tick
// metrics.
func tickLoop(ctx context.Context, o opts, mon *monitor.Monitor, det *spike.Detector, tel *telemetry.Telemetry, logger *slog.Logger) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-timer.C:
			interval := mon.Tick(-1)

			elapsed := int(now.Sub(last).Milliseconds())
			last = now
			if _, bcpu, _ := mon.Last(); bcpu.Available() {
				if int(bcpu) > o.spikeThreshold*100 {
					det.RecordSpike(elapsed)
				} else {
					det.RecordNonSpike(elapsed)
				}
				tel.ObserveBurst(det.BurstRatePerMin(), det.BurstRateBreach())
			}

			if interval == monitor.BlockForever {
				logger.Info("monitor idle, waiting for shutdown")
				<-ctx.Done()
				return ctx.Err()
			}
			if interval <= 0 {
				interval = config.DefaultPollMS
			}
			timer.Reset(time.Duration(interval) * time.Millisecond)
		}
	}
}
