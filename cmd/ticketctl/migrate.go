package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/postgres"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "データベースのマイグレーション",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "マイグレーションを最新まで適用する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.RunMigrations(db.DB); err != nil {
			return err
		}
		fmt.Println("マイグレーションを適用しました")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "マイグレーションを戻す",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps < 1 {
			return fmt.Errorf("--steps は1以上を指定してください")
		}
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.RollbackMigrations(db.DB, migrateSteps); err != nil {
			return err
		}
		fmt.Printf("マイグレーションを%d件戻しました\n", migrateSteps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "適用済みのバージョンを表示する",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := postgres.MigrationVersion(db.DB)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"version": version, "dirty": dirty})
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "戻す件数")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
