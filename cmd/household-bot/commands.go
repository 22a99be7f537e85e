package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"household-bot/internal/config"
	"household-bot/internal/correlation"
	"household-bot/internal/database"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "household-bot",
		Short: "Household reminder and meal-plan bot",
		Long: `Household reminder and meal-plan bot.

Delivers scheduled purchase reminders and weekly meal plans over Telegram,
escalating ignored reminders and rotating completed plans week over week.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its sweep jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge-correlations",
		Short: "Remove malformed message-correlation entries",
		Long: `Remove malformed message-correlation entries.

Safe to run repeatedly; reports the number of entries purged. With
--legacy-file, first imports a legacy flat map of "{reminderId}_{recipientId}"
keys, skipping (and counting) entries whose key cannot be parsed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			legacyFile, _ := cmd.Flags().GetString("legacy-file")
			return runPurge(legacyFile)
		},
	}
	purgeCmd.Flags().String("legacy-file", "", "JSON file with legacy correlation keys to import first")

	root.AddCommand(serveCmd, purgeCmd)
	return root
}

func runPurge(legacyFile string) error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	correlations := correlation.NewRepository(db.SQL)

	if legacyFile != "" {
		data, err := os.ReadFile(legacyFile)
		if err != nil {
			return fmt.Errorf("failed to read legacy file: %w", err)
		}
		var legacy map[string]int
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("failed to parse legacy file: %w", err)
		}
		imported, skipped, err := correlations.ImportLegacy(ctx, legacy)
		if err != nil {
			return fmt.Errorf("failed to import legacy entries: %w", err)
		}
		fmt.Printf("Imported %d legacy entries, skipped %d malformed keys\n", imported, skipped)
	}

	purged, err := correlations.PurgeMalformed(ctx)
	if err != nil {
		return err
	}
	orphaned, err := correlations.DeleteOrphans(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d malformed and %d orphaned correlation entries\n", purged, orphaned)
	return nil
}
