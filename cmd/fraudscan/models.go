package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/classifier"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or install trained models",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List models in models_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := classifier.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range reg.Models() {
				fmt.Fprintf(out, "%-24s %s\n", m.Name, m.Kind)
			}
			fmt.Fprintf(out, "features: %s\n", strings.Join(reg.Features(), ", "))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add FILE",
		Short: "Validate a trained model file and install it into models_dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			info, err := classifier.Install(cfg.ModelsDir, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%s) into %s\n", info.Name, info.Kind, cfg.ModelsDir)
			return nil
		},
	}
	add.Flags().String("name", "", "model name (default: name in the file)")

	cmd.AddCommand(list, add)
	return cmd
}
