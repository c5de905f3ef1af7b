package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the geocode cache",
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env, err := initStack(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("cache schema up to date", zap.String("driver", cfg.Cache.Driver))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached geocode entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		env, err := initStack(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Cache.Clear(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.String("driver", cfg.Cache.Driver))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheMigrateCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
