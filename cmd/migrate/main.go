// Package main applies database migrations for the stock ledger.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/storage/postgres/migration"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		dir     string
		dbURL   string
		verbose bool
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the stock ledger database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory containing the migration files")
	root.PersistentFlags().StringVar(&dbURL, "database", os.Getenv("DATABASE_URL"), "database url (defaults to DATABASE_URL)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every applied file")

	open := func() (*migration.Runner, error) {
		if dbURL == "" {
			return nil, fmt.Errorf("database url is required")
		}
		return migration.New(dbURL, dir, logger.Default(), verbose)
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Up()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid steps %q: %w", args[0], err)
				}
				steps = n
			}
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Down(steps)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			defer r.Close()
			v, dirty, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
			return nil
		},
	})

	return root
}
