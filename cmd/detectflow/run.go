package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/engine"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	"github.com/alexisbeaulieu97/detectflow/internal/report"
	"github.com/alexisbeaulieu97/detectflow/internal/templatesource"
)

type runOptions struct {
	TemplatePath string
	Root         string
	Start        string
	End          string
	Timezone     string
	Usage        string
	AlertID      int64
	Namespace    string
	Output       string
	MetricsAddr  string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline template over a detection interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTemplatePath(opts.TemplatePath); err != nil {
				return err
			}
			var alertID *int64
			if cmd.Flags().Changed("alert-id") {
				id := opts.AlertID
				alertID = &id
			}
			return runPipeline(cmd, root, opts, alertID)
		},
	}

	cmd.Flags().StringVarP(&opts.TemplatePath, "template", "t", "", "Pipeline template: a file path or git::<repo>//<path>[@branch]")
	cmd.Flags().StringVar(&opts.Root, "root", "", "Node to execute (default: the single sink)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "Interval start, RFC 3339 (default: end minus 24h)")
	cmd.Flags().StringVar(&opts.End, "end", "", "Interval end, RFC 3339 (default: now)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone for calendar arithmetic (default UTC)")
	cmd.Flags().StringVar(&opts.Usage, "usage", string(model.Detection), "DETECTION or EVALUATION")
	cmd.Flags().Int64Var(&opts.AlertID, "alert-id", 0, "Alert id stamped on anomalies and enumeration items")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Namespace stamped on anomalies")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", report.FormatText, "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running")
	cmd.MarkFlagRequired("template") //nolint:errcheck

	return cmd
}

func runPipeline(cmd *cobra.Command, root *rootFlags, opts runOptions, alertID *int64) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	appCtx, err := newAppContext(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, appCtx.Close())
	}()

	tpl, err := templatesource.Load(ctx, opts.TemplatePath, appCtx.Logger)
	if err != nil {
		return err
	}
	graph, err := engine.BuildTemplateGraph(tpl)
	if err != nil {
		return err
	}
	rootNode := opts.Root
	if rootNode == "" {
		if rootNode, err = engine.DefaultRoot(graph); err != nil {
			return err
		}
	}

	usage, err := model.ParseUsage(opts.Usage)
	if err != nil {
		return err
	}
	interval, err := parseInterval(opts.Start, opts.End, opts.Timezone, time.Now())
	if err != nil {
		return err
	}

	addr := opts.MetricsAddr
	if addr == "" {
		addr = appCtx.Settings.Metrics.Address
	}
	if addr != "" {
		shutdown, serveErr := serveMetrics(addr, appCtx.Metrics, appCtx.Logger)
		if serveErr != nil {
			return serveErr
		}
		defer shutdown()
	}

	pctx := &pipeline.Context{
		Usage:     usage,
		AlertID:   alertID,
		Namespace: opts.Namespace,
		Interval:  interval,
		RunID:     uuid.NewString(),
		App:       appCtx.App,
	}
	log := pctx.Logger().WithFields(map[string]any{"template": tpl.Name, "root": rootNode})
	log.With("interval", interval.String()).Info("run started")

	started := time.Now()
	results, err := appCtx.Executor.Execute(ctx, graph, rootNode, pctx)
	elapsed := time.Since(started)
	if err != nil {
		log.With("duration", elapsed.String()).Error(err, "run failed")
		return err
	}
	log.With("duration", elapsed.String()).Info("run completed")

	summary := report.Summarize(report.Run{
		RunID:    pctx.RunID,
		Usage:    usage,
		Root:     rootNode,
		Interval: interval,
		Duration: elapsed,
	}, results)
	out := cmd.OutOrStdout()
	return renderer(opts.Output, out).Summary(out, summary)
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *logger.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped")
		}
	}()
	log.With("address", listener.Addr().String()).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
