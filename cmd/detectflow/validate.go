package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/engine"
	"github.com/alexisbeaulieu97/detectflow/internal/operators"
	"github.com/alexisbeaulieu97/detectflow/internal/report"
	"github.com/alexisbeaulieu97/detectflow/internal/templatesource"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

type validateOptions struct {
	TemplatePath string
	Root         string
	Output       string
}

func newValidateCmd(root *rootFlags) *cobra.Command {
	opts := validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline template and print its execution plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTemplatePath(opts.TemplatePath); err != nil {
				return err
			}
			return runValidate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.TemplatePath, "template", "t", "", "Pipeline template: a file path or git::<repo>//<path>[@branch]")
	cmd.Flags().StringVar(&opts.Root, "root", "", "Node to plan (default: the single sink)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", report.FormatText, "Output format: text, json or yaml")
	cmd.MarkFlagRequired("template") //nolint:errcheck

	return cmd
}

func runValidate(cmd *cobra.Command, root *rootFlags, opts validateOptions) error {
	settings, err := config.LoadSettings(root.settingsPath)
	if err != nil {
		return err
	}
	log, err := newLogger(settings, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	tpl, err := templatesource.Load(cmd.Context(), opts.TemplatePath, log)
	if err != nil {
		return err
	}
	if err := checkOperatorTypes(tpl); err != nil {
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
	plan, err := engine.GeneratePlan(graph, rootNode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return renderer(opts.Output, out).Plan(out, tpl.Name, plan)
}

// checkOperatorTypes reports every node whose type has no registered operator.
func checkOperatorTypes(tpl *config.Template) error {
	reg := operators.NewRegistry()
	var errs error
	for i, node := range tpl.Nodes {
		if !reg.Has(node.Type) {
			errs = multierr.Append(errs, detecterrors.NewValidationError(
				fmt.Sprintf("nodes[%d].type", i),
				fmt.Sprintf("node '%s' has unknown operator type '%s'", node.Name, node.Type),
				nil,
			))
		}
	}
	return errs
}
