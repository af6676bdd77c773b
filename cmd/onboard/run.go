package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-onboard/pkg/form"
	"github.com/goliatone/go-onboard/pkg/renderers/tui"
	"github.com/goliatone/go-onboard/pkg/submission"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		format string
		outDir string
		style  string
		width  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the wizard in the terminal",
		Long:  `Prompts every visible field step by step and prints the submitted answers.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := submission.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			sch, err := a.loadSchema(ctx, orch)
			if err != nil {
				return err
			}
			session, err := orch.Start(ctx, sch, nil, 0)
			if err != nil {
				return err
			}

			wizard, err := tui.New(tui.WithLogger(a.logger), tui.WithOutputFormat(outFormat))
			if err != nil {
				return err
			}
			payload, err := wizard.Run(ctx, form.NewController(session, form.WithLogger(a.logger)))
			if errors.Is(err, tui.ErrAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "aborted")
				return nil
			}
			if err != nil {
				return err
			}

			encOpts := []submission.EncoderOption{submission.WithSchema(sch)}
			if style != "" {
				encOpts = append(encOpts, submission.WithTerminalStyle(style, width))
			}
			sinks := []submission.Sink{
				submission.NewWriterSink(cmd.OutOrStdout(), submission.NewEncoder(outFormat, encOpts...)),
			}
			if outDir != "" {
				files, err := submission.NewFileSink(outDir, submission.NewEncoder(submission.FormatEnvelope))
				if err != nil {
					return err
				}
				sinks = append(sinks, files)
			}
			return submission.Multi(sinks...).Deliver(ctx, payload)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", string(submission.FormatJSON), "output format: json, envelope, form, pretty or markdown")
	flags.StringVar(&outDir, "out-dir", "", "also write the submission envelope to this directory")
	flags.StringVar(&style, "style", "", "glamour style for markdown output (dark, light, notty)")
	flags.IntVar(&width, "width", 80, "word wrap width for styled markdown")
	return cmd
}
