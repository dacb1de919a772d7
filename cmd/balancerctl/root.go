package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/balancer"
	"github.com/unkn0wn-root/balancer/config"
	lr "github.com/unkn0wn-root/balancer/log/logrus"
)

type app struct {
	out      io.Writer
	cfgPath  string
	logLevel string
	timeout  time.Duration

	log *logrus.Logger
	b   *balancer.Balancer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "balancerctl",
		Short:         "Inspect and drive a multi-backend cache balancer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("BALANCER_CONFIG"), "Path to the YAML config (env BALANCER_CONFIG)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "Timeout per operation")

	root.AddCommand(
		a.getCmd(), a.setCmd(), a.delCmd(), a.existsCmd(),
		a.lockCmd(), a.unlockCmd(), a.flushCmd(),
		a.keysCmd(), a.syncCmd(), a.checkCmd(), a.statsCmd(),
	)
	return root
}

func (a *app) open() error {
	f := config.NewDefault()
	if a.cfgPath != "" {
		var err error
		if f, err = config.Load(a.cfgPath); err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		f.Log.Level = a.logLevel
	}

	a.log = logrus.New()
	a.log.SetOutput(os.Stderr)
	if f.Log.Format == "json" {
		a.log.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(coalesceLevel(f.Log.Level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.log.SetLevel(lvl)

	b, err := config.Build(f, lr.New(a.log), nil)
	if err != nil {
		return err
	}
	a.b = b
	return nil
}

func (a *app) close() error {
	if a.b == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	err := a.b.Close(ctx)
	a.b = nil
	return err
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

func coalesceLevel(l string) string {
	if l == "" {
		return "info"
	}
	return l
}
