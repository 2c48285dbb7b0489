// Command guarantor-merge merges a Guarantor Info report (Report 24) with an
// Active Client report (Report 12) offline and writes the consolidated
// workbook.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/guarantor/internal/config"
	"github.com/JonMunkholm/guarantor/internal/core"
	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/store"
)

const (
	Version = "0.1.0"
	appName = "guarantor-merge"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Merge guarantor and active client reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel, "text")
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(), layoutCmd(), versionCmd())
	return cmd
}

type runOptions struct {
	guarantor string
	clients   string
	output    string
	layout    string
	sheet     string
	quiet     bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Merge two reports into one workbook",
		Long: `Reads the Guarantor Info report and the Active Client report, keeps the
highest loan cycle per CNIC and writes one row per active client that has a
guarantor. Accepts .xlsx, .xls and .csv inputs.`,
		Example: "  guarantor-merge run --guarantor report24.xlsx --clients report12.xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMerge(ctx, opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.guarantor, "guarantor", "g", "", "Guarantor Info report (Report 24)")
	cmd.Flags().StringVarP(&opts.clients, "clients", "a", "", "Active Client report (Report 12)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", core.DefaultOutputName, "Output workbook path")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "Column layout YAML (default: built-in layout)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Output sheet name")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print progress")
	_ = cmd.MarkFlagRequired("guarantor")
	_ = cmd.MarkFlagRequired("clients")

	return cmd
}

func runMerge(ctx context.Context, opts runOptions, progressOut io.Writer) error {
	layout := merge.DefaultLayout()
	if opts.layout != "" {
		var err error
		if layout, err = config.LoadLayout(opts.layout); err != nil {
			return err
		}
	}

	guarantor, err := os.Open(opts.guarantor)
	if err != nil {
		return err
	}
	defer guarantor.Close()

	clients, err := os.Open(opts.clients)
	if err != nil {
		return err
	}
	defer clients.Close()

	svc := core.NewService(store.NewMemory(0), core.Options{
		Layout:    layout,
		SheetName: opts.sheet,
		Logger:    slog.Default(),
	})

	var onProgress merge.ProgressFunc
	if !opts.quiet {
		onProgress = func(p merge.Progress) {
			fmt.Fprintf(progressOut, "\r%3d%% %-60s", p.Percent, p.Status)
		}
	}

	res, err := svc.Merge(ctx,
		merge.Input{Name: filepath.Base(opts.guarantor), Data: guarantor},
		merge.Input{Name: filepath.Base(opts.clients), Data: clients},
		onProgress,
	)
	if !opts.quiet {
		fmt.Fprintln(progressOut)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("merge cancelled")
		}
		return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
	}

	if err := os.WriteFile(opts.output, res.File, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}

	fmt.Fprintf(progressOut, "Matched %d of %d active clients (%d guarantor CNICs indexed) in %s\n",
		res.Matched, res.ClientRows, res.Indexed, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(progressOut, "Wrote %s\n", opts.output)
	return nil
}

func layoutCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the effective column layout as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			l := merge.DefaultLayout()
			if path != "" {
				var err error
				if l, err = config.LoadLayout(path); err != nil {
					return err
				}
			}
			out, err := config.MarshalLayout(l)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "layout", "", "Column layout YAML to resolve")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	}
}
