package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parcel-locator/internal/dvf"
	"parcel-locator/internal/repository"
	"parcel-locator/internal/service"
)

func createImportDVFCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import-dvf [filename...]",
		Short: "Load DVF sales files used as price references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			repo := repository.NewTransactionRepository(database)

			for _, filename := range args {
				f, err := os.Open(filename)
				if err != nil {
					return fmt.Errorf("open %s: %w", filename, err)
				}
				reader, err := dvf.NewReader(f)
				if err != nil {
					f.Close()
					return fmt.Errorf("%s: %w", filename, err)
				}
				stats, err := dvf.Import(cmd.Context(), reader, repo, batchSize, appLog.With().Str("file", filename).Logger())
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", filename, err)
				}
				fmt.Printf("%s: %d mutations, %d parcels, %d new rows, %d skipped\n",
					filename, stats.Mutations, stats.Parcels, stats.Inserted, stats.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", dvf.DefaultBatchSize, "rows per insert batch")
	return cmd
}

func createCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored searches older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			svc := service.NewLocateService(service.Deps{
				Searches: repository.NewSearchRepository(database),
			}, service.Options{}, appLog)

			deleted, err := svc.CleanupOldSearches(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d searches older than %d days\n", deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "retention in days")
	return cmd
}
