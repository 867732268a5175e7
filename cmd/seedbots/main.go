package main

import (
	"context"
	"fmt"
	"os"

	"radiance/backend/internal/models"
	"radiance/backend/internal/seed"
	"radiance/backend/pkg/config"
	"radiance/backend/pkg/jwt"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/secrets"

	"github.com/spf13/cobra"
)

var log *logger.Logger

func main() {
	log = logger.New(logger.Config{Level: "info", JSON: false, Output: os.Stderr})

	root := &cobra.Command{
		Use:   "seedbots",
		Short: "Create the bot accounts the chat relay answers for",
		Long: `Creates bot participants from a YAML roster (the built-in one by default).
Existing accounts, matched by email, are left untouched.`,
		RunE: runSeed,
	}
	root.Flags().StringP("file", "f", "", "path to a bots YAML roster")
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")

	bots, err := seed.DefaultBots()
	if file != "" {
		bots, err = seed.LoadFile(file)
	}
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	db, err := config.NewDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(models.AutoMigrate()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	res, err := seed.Seed(cmd.Context(), db, bots)
	for _, email := range res.Created {
		log.Info("Bot created", "email", email)
	}
	for _, email := range res.Skipped {
		log.Info("Bot already exists", "email", email)
	}
	return err
}

// tokenCmd mints a session token, handy for connecting to /ws/chat by hand
func tokenCmd() *cobra.Command {
	var userID uint

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a JWT for a participant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}

			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			db, err := config.NewDB(cfg)
			if err != nil {
				return err
			}
			var p models.Participant
			if err := db.WithContext(cmd.Context()).First(&p, userID).Error; err != nil {
				return fmt.Errorf("participant %d: %w", userID, err)
			}

			token, err := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry).GenerateToken(p.ID, p.Username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "participant id")

	return cmd
}

// loadConfig reads the environment and overlays credentials from Vault
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg := config.New()
	manager, err := secrets.NewVaultManager(secrets.ConfigFrom(cfg), log)
	if err != nil {
		return nil, err
	}
	if err := secrets.Resolve(ctx, manager, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
