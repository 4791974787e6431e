package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newToolsCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalogue offered to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			registry, err := newRegistry(cfg, st)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(registry.List())
		},
	}
}
