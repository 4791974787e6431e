package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chative-analytics/server/internal/store"
)

func newSeedCmd(envFile *string) *cobra.Command {
	var customers int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate the synthetic customer dataset",
		Long: `Replace raw_transactions and customer_data with a freshly generated
synthetic dataset. The same --seed always produces the same data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("customers") {
				cfg.Seed.Customers = customers
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed.Seed = seed
			}

			ds, err := store.Generate(cfg.Seed)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.ReplaceDataset(cmd.Context(), ds); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers and %d transactions into %s\n",
				len(ds.Customers), len(ds.Transactions), cfg.SQLite.Path)
			return nil
		},
	}
	cmd.Flags().IntVar(&customers, "customers", 200, "number of customers to simulate")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	return cmd
}
