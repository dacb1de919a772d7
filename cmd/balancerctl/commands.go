package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/balancer"
)

var errNotDone = errors.New("operation did not succeed")

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Read a key through the rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			res := a.b.Get(ctx, args[0])
			if res.Status == balancer.Pending {
				// A CLI read never fills; give the lock back.
				a.b.Unlock(ctx, args[0])
			}
			if res.Status != balancer.Hit {
				fmt.Fprintln(a.out, "(miss)")
				return nil
			}
			fmt.Fprintf(a.out, "%s\n", res.Value)
			a.log.WithField("source", res.Source).Debug("served")
			return nil
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	var (
		ttl time.Duration
		nx  bool
	)
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a value to every backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			mode := balancer.Overwrite
			if nx {
				mode = balancer.AddIfAbsent
			}
			if !a.b.SetMode(ctx, args[0], []byte(args[1]), ttl, mode) {
				return errNotDone
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Expiry (0 = no expiry)")
	cmd.Flags().BoolVar(&nx, "nx", false, "Only set if absent")
	return cmd
}

func (a *app) delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del KEY",
		Short: "Delete a key from every backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			fmt.Fprintln(a.out, a.b.Delete(ctx, args[0]))
			return nil
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists KEY",
		Short: "Report whether an unlocked key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			fmt.Fprintln(a.out, a.b.Exists(ctx, args[0]))
			return nil
		},
	}
}

func (a *app) lockCmd() *cobra.Command {
	var hold time.Duration
	cmd := &cobra.Command{
		Use:   "lock KEY",
		Short: "Show the lock state of a key, or hold its lock with --hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if hold <= 0 {
				st := a.b.IsLocked(ctx, args[0])
				fmt.Fprintf(a.out, "%s %s\n", st.Kind, st.Marker)
				return nil
			}
			if !a.b.Lock(ctx, args[0], hold) {
				return errNotDone
			}
			fmt.Fprintln(a.out, a.b.IsLocked(ctx, args[0]).Marker)

			// Held until the ttl runs out or the process is interrupted;
			// Close releases it either way.
			sig, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			t := time.NewTimer(hold)
			defer t.Stop()
			select {
			case <-t.C:
			case <-sig.Done():
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&hold, "hold", 0, "Acquire the lock and keep it for this long")
	return cmd
}

func (a *app) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock KEY",
		Short: "Remove a lock marker regardless of owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			st := a.b.IsLocked(ctx, args[0])
			if st.Kind != balancer.Locked {
				return fmt.Errorf("%s is %s", args[0], st.Kind)
			}
			fmt.Fprintln(a.out, a.b.Delete(ctx, args[0]))
			return nil
		},
	}
}

func (a *app) flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			if !a.b.Flush(ctx) {
				return errNotDone
			}
			fmt.Fprintln(a.out, "OK")
			return nil
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the union of keys across backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			for _, k := range a.b.Keys(ctx) {
				fmt.Fprintln(a.out, k)
			}
			return nil
		},
	}
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Percentage of keys identical on every backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			fmt.Fprintf(a.out, "%.2f\n", a.b.SyncPercent(ctx))
			return nil
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check KEY",
		Short: "Report whether every backend holds the same value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			fmt.Fprintln(a.out, a.b.Synchronized(ctx, args[0]))
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print INFO sections for each backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx()
			defer cancel()
			stats := a.b.Stats(ctx)
			for _, name := range a.b.Backends() {
				fmt.Fprintf(a.out, "## %s\n", name)
				for _, cat := range balancer.StatCategories {
					if section != "" && section != cat {
						continue
					}
					fmt.Fprintf(a.out, "[%s]\n%s\n", cat, strings.TrimSpace(stats[cat][name]))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "Only this INFO section")
	return cmd
}
