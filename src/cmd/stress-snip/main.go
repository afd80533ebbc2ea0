package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-snip/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

type counts struct {
	ok, rejected, missing, errs int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-snip",
		Short:         "Fire concurrent requests at a screen-snip resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sequence, err := modeSequence(opts.mode)
			if err != nil {
				return err
			}
			c := stress(singleinstance.NewClient(), opts.n, opts.deadline, sequence)
			report(cmd.OutOrStdout(), opts.n, c)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "status", "status|query|cycle: read-only requests or start+cancel cycles")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func modeSequence(mode string) ([]singleinstance.Request, error) {
	switch mode {
	case "status":
		return []singleinstance.Request{{Command: singleinstance.CmdStatus}}, nil
	case "query":
		return []singleinstance.Request{{Command: singleinstance.CmdQuery}}, nil
	case "cycle":
		return []singleinstance.Request{{Command: singleinstance.CmdStart}, {Command: singleinstance.CmdCancel}}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// stress runs n clients concurrently; each sends sequence in order and stops at the first failure.
func stress(client singleinstance.Client, n int, deadline time.Duration, sequence []singleinstance.Request) *counts {
	var wg sync.WaitGroup
	c := &counts{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			for _, req := range sequence {
				delegated, _, err := client.Send(ctx, req)
				var remote *singleinstance.RemoteError
				switch {
				case errors.As(err, &remote):
					// The resident answered; QUERY with no snip is an expected rejection.
					atomic.AddInt32(&c.rejected, 1)
					return
				case err != nil:
					atomic.AddInt32(&c.errs, 1)
					return
				case !delegated:
					atomic.AddInt32(&c.missing, 1)
					return
				}
			}
			atomic.AddInt32(&c.ok, 1)
		}()
	}
	wg.Wait()
	return c
}

func report(w io.Writer, n int, c *counts) {
	fmt.Fprintf(w, "launched=%d ok=%d rejected=%d no-resident=%d err=%d\n",
		n, atomic.LoadInt32(&c.ok), atomic.LoadInt32(&c.rejected), atomic.LoadInt32(&c.missing), atomic.LoadInt32(&c.errs))
	if atomic.LoadInt32(&c.missing) == int32(n) && n > 0 {
		fmt.Fprintln(w, "no resident answered; is screen-snip running?")
	}
}
