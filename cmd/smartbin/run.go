package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/teslashibe/smartbin/internal/log"
	camcv "github.com/teslashibe/smartbin/pkg/camera/opencv"
	"github.com/teslashibe/smartbin/pkg/dispatch"
	"github.com/teslashibe/smartbin/pkg/inference"
	infercv "github.com/teslashibe/smartbin/pkg/inference/opencv"
	"github.com/teslashibe/smartbin/pkg/labels"
	"github.com/teslashibe/smartbin/pkg/metrics"
	"github.com/teslashibe/smartbin/pkg/overlay"
	"github.com/teslashibe/smartbin/pkg/preprocess"
	"github.com/teslashibe/smartbin/pkg/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the classification loop",
	Long:  `Captures frames, classifies them and drives the matching lid until interrupted.`,
	RunE:  runLoop,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("debug", false, "Show the camera preview with the predicted label (press q to quit)")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().String("camera", "", "Camera device index or path")
	runCmd.Flags().String("model", "", "Classifier model file")
	runCmd.Flags().String("labels", "", "Label file, one class per line")

	rootCmd.RunE = runLoop
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("camera") {
		cfg.Camera.Device, _ = flags.GetString("camera")
	}
	if flags.Changed("model") {
		cfg.Inference.ModelPath, _ = flags.GetString("model")
	}
	if flags.Changed("labels") {
		cfg.LabelsPath, _ = flags.GetString("labels")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := labels.Load(cfg.LabelsPath)
	if err != nil {
		return err
	}
	log.Debug("labels loaded", "path", cfg.LabelsPath, "count", resolver.Len())

	engine, err := infercv.New(cfg.Inference, log.Component("inference"))
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := inference.CheckContract(engine, resolver.Len()); err != nil {
		return err
	}

	pre, err := preprocess.New(engine.Contract())
	if err != nil {
		return err
	}

	reg, closeRegistry, err := openRegistry(ctx, cfg, log.Component("servo"))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRegistry(); err != nil {
			log.Error("failed to release servos", "error", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, promReg, log.Component("metrics"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	var mapped []string
	for _, name := range resolver.Names() {
		if _, ok := reg.Lookup(name); ok {
			mapped = append(mapped, name)
		}
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(log.Component("dispatch")),
		dispatch.WithMetrics(m),
		dispatch.WithReporter(report.NewConsole(os.Stdout, report.WithMapped(mapped...))),
	}
	if cfg.Debug {
		win := overlay.New(overlay.DefaultTitle, log.Component("overlay"))
		defer win.Close()
		opts = append(opts, dispatch.WithReporter(win))
	}

	src := camcv.New(cfg.Camera, log.Component("camera"))
	d := dispatch.New(cfg.Dispatch, src, pre, engine, resolver, reg, opts...)

	log.Info("✅ smartbin ready",
		"labels", resolver.Len(),
		"mapped", mapped,
		"model", cfg.Inference.ModelPath,
		"debug", cfg.Debug,
	)
	return d.Run(ctx)
}
