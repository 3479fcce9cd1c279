package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chtzvt/tablemapper/cmd/tablemapper/config"
	"github.com/chtzvt/tablemapper/internal/flow"
	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runCmd(conf func() *config.Config) *cobra.Command {
	var (
		flowFile string
		workers  int
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a flow to completion, or on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf()
			if workers > 0 {
				cfg.Runner.Workers = workers
			}
			log, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			spec, err := flow.LoadSpec(flowFile)
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return fmt.Errorf("invalid flow: %w", err)
			}
			store, err := secretStore(cfg.Secrets)
			if err != nil {
				return fmt.Errorf("secrets: %w", err)
			}

			ctx, cancel := cmdContext()
			defer cancel()

			if schedule != "" {
				return runScheduled(ctx, cmd.OutOrStdout(), schedule, spec, store, cfg.Runner, log)
			}
			return runOnce(ctx, cmd.OutOrStdout(), spec, store, cfg.Runner, log)
		},
	}
	cmd.Flags().StringVar(&flowFile, "flow", "", "flow definition (.json, .yaml)")
	cmd.Flags().IntVar(&workers, "workers", 0, "trigger workers (overrides runner.workers)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression; run the flow on this schedule until interrupted")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}

func runOnce(ctx context.Context, out io.Writer, spec *flow.Spec, store secrets.Store, rc config.RunnerConfig, log logrus.FieldLogger) error {
	runner, err := flow.NewRunner(spec, store, log)
	if err != nil {
		return err
	}
	runner.Workers = rc.Workers
	runner.QueueSize = rc.QueueSize

	log.WithField("workers", runner.Workers).Info("starting flow")
	err = runner.Run(ctx)
	fmt.Fprintln(out, runner.Metrics.Snapshot())
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("flow interrupted")
		return nil
	}
	return err
}

// runScheduled starts a fresh run at every tick. Each run's chunks carry the
// tick time in their base name so runs do not overwrite each other. A tick
// that fires while the previous run is still going is skipped.
func runScheduled(ctx context.Context, out io.Writer, schedule string, spec *flow.Spec, store secrets.Store, rc config.RunnerConfig, log logrus.FieldLogger, opts ...cron.Option) error {
	base := spec.Name
	if base == "" {
		base = "tablemapper"
	}
	clog := cronLogger{log: log.WithField("component", "cron")}
	c := cron.New(append([]cron.Option{
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	}, opts...)...)
	_, err := c.AddFunc(schedule, func() {
		tick := *spec
		tick.Name = base + "-" + time.Now().UTC().Format("20060102T150405")
		if err := runOnce(ctx, out, &tick, store, rc, log.WithField("run", tick.Name)); err != nil {
			log.WithError(err).WithField("run", tick.Name).Error("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	log.WithField("schedule", schedule).Info("flow scheduled")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) fields(keysAndValues []interface{}) logrus.FieldLogger {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.log.WithFields(f)
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).WithError(err).Error(msg)
}
