package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-onboard/internal/logging"
	"github.com/goliatone/go-onboard/pkg/orchestrator"
	"github.com/goliatone/go-onboard/pkg/schema"
)

type app struct {
	debug  bool
	dev    bool
	schema string
	preset string
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "onboard",
		Short:         "Schema-driven onboarding wizards",
		Long:          `onboard walks users through multi-step onboarding forms described by a JSON or YAML schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Config{Debug: a.debug, Development: a.dev})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&a.dev, "dev", false, "human readable console logs")
	flags.StringVarP(&a.schema, "schema", "s", "", "schema file or URL (built-in SEO onboarding schema when empty)")
	flags.StringVar(&a.preset, "preset", "", "JSON or YAML preset applied to the schema before validation")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
		newContractCmd(a),
		newCheckPayloadCmd(a),
	)
	return root
}

func (a *app) orchestrator(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	opts = append([]orchestrator.Option{orchestrator.WithLogger(a.logger)}, opts...)
	if a.preset != "" {
		data, err := os.ReadFile(a.preset)
		if err != nil {
			return nil, fmt.Errorf("read preset: %w", err)
		}
		preset, err := orchestrator.NewPresetTransformer(data)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithSchemaTransformer(preset))
	}
	return orchestrator.New(opts...), nil
}

// loadSchema loads --schema, or the built-in schema when it is empty.
func (a *app) loadSchema(ctx context.Context, orch *orchestrator.Orchestrator) (*schema.Schema, error) {
	if a.schema == "" {
		return orch.Prepare(ctx, schema.Onboarding())
	}
	src, err := schema.ParseSource(a.schema)
	if err != nil {
		return nil, err
	}
	return orch.Load(ctx, src)
}
