package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"entity-admin/internal/metadata"
)

func newDescribeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "describe [entity...]",
		Short: "Print the resolved metadata of the registered entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newResolver(zap.NewNop())
			if err != nil {
				return err
			}
			descs, err := describe(r, args)
			if err != nil {
				return err
			}
			return writeDescriptors(cmd.OutOrStdout(), format, descs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml|json")
	return cmd
}

func describe(r *metadata.Resolver, ids []string) ([]metadata.EntityDescriptor, error) {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	out := make([]metadata.EntityDescriptor, 0, len(ids))
	for _, id := range ids {
		e, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e.Describe())
	}
	return out, nil
}

func writeDescriptors(w io.Writer, format string, descs []metadata.EntityDescriptor) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(descs); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}
	return fmt.Errorf("unknown format %q", format)
}
