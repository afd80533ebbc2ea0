package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"screen-snip/src/config"
	"screen-snip/src/encoder"
	"screen-snip/src/singleinstance"
)

var errNoResident = errors.New("no screen-snip resident is running")

type cliOptions struct {
	envPath string
	timeout time.Duration
	verbose bool
}

// app carries the CLI's dependencies so tests can swap the transport.
type app struct {
	client singleinstance.Client
	stdout io.Writer
	stderr io.Writer
	isTTY  func(w io.Writer) bool
}

func main() {
	a := &app{client: singleinstance.NewClient(), stdout: os.Stdout, stderr: os.Stderr, isTTY: isTerminal}
	if err := a.newRootCmd(&cliOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snipctl",
		Short:         "Drive a running screen-snip resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.verbose {
				log.SetOutput(io.Discard)
			} else {
				log.SetOutput(a.stderr)
			}
			// Load .env so SNIP_PORT_* match the resident's.
			_, err := config.LoadWithOptions(config.LoadOptions{EnvPathOverride: opts.envPath})
			return err
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to .env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(
		a.simpleCmd(opts, "start", "Capture the screen and open the selection overlay", singleinstance.CmdStart),
		a.imageCmd(opts, "query", "Print the capture of the active snip", singleinstance.CmdQuery),
		a.finishCmd(opts),
		a.simpleCmd(opts, "cancel", "Cancel the active snip", singleinstance.CmdCancel),
		a.logCmd(opts),
		a.imageCmd(opts, "capture", "Capture the full primary display", singleinstance.CmdCapture),
		a.statusCmd(opts),
		a.waitCmd(opts),
	)
	return cmd
}

func (a *app) send(opts *cliOptions, req singleinstance.Request) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	delegated, body, err := a.client.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if !delegated {
		return "", errNoResident
	}
	return body, nil
}

func (a *app) simpleCmd(opts *cliOptions, use, short, command string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.send(opts, singleinstance.Request{Command: command})
			return err
		},
	}
}

func (a *app) imageCmd(opts *cliOptions, use, short, command string) *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.send(opts, singleinstance.Request{Command: command})
			if err != nil {
				return err
			}
			if pngPath == "" {
				fmt.Fprintln(a.stdout, body)
				return nil
			}
			return a.writePNG(pngPath, body)
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "Write decoded PNG to a file ('-' for stdout) instead of the data URL")
	return cmd
}

func (a *app) writePNG(path, dataURL string) error {
	data, err := encoder.ParseDataURL(strings.TrimSpace(dataURL))
	if err != nil {
		return err
	}
	if path == "-" {
		if a.isTTY(a.stdout) {
			return errors.New("refusing to write PNG data to a terminal; redirect stdout or use --png FILE")
		}
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(a.stderr, "wrote %d bytes to %s\n", len(data), path)
	return nil
}

func (a *app) finishCmd(opts *cliOptions) *cobra.Command {
	var polygon string
	cmd := &cobra.Command{
		Use:   "finish X Y WIDTH HEIGHT VIEWPORT_WIDTH VIEWPORT_HEIGHT",
		Short: "Crop the active snip to a selection made in viewport coordinates",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			if polygon != "" {
				args = append(args, polygon)
			}
			_, err := a.send(opts, singleinstance.Request{Command: singleinstance.CmdFinish, Args: args})
			return err
		},
	}
	cmd.Flags().StringVar(&polygon, "polygon", "", "Lasso outline as 'x1,y1;x2,y2;...' in viewport coordinates")
	return cmd
}

func (a *app) logCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log MESSAGE...",
		Short: "Write a message to the resident's log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.send(opts, singleinstance.Request{Command: singleinstance.CmdLog, Args: []string{strings.Join(args, " ")}})
			return err
		},
	}
}

func (a *app) statusCmd(opts *cliOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the resident's snip state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.send(opts, singleinstance.Request{Command: singleinstance.CmdStatus})
			if err != nil {
				return err
			}
			if jsonOutput {
				fmt.Fprintln(a.stdout, body)
				return nil
			}
			var st statusView
			if err := json.Unmarshal([]byte(body), &st); err != nil {
				return fmt.Errorf("failed to decode status: %w", err)
			}
			fmt.Fprintln(a.stdout, renderStatus(st, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	return cmd
}

func (a *app) waitCmd(opts *cliOptions) *cobra.Command {
	var event string
	cmd := &cobra.Command{
		Use:   "wait TARGET",
		Short: "Block until the next event for a target and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqArgs := []string{args[0]}
			if event != "" {
				reqArgs = append(reqArgs, event)
			}
			body, err := a.send(opts, singleinstance.Request{Command: singleinstance.CmdWait, Args: reqArgs})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&event, "event", "", "Only return events with this name")
	return cmd
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
