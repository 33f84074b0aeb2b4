package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "moviewatchlist",
		Short: "Personal movie watchlist with TMDB-backed recommendations",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(recommendCmd())
	root.AddCommand(seedCmd())

	return root
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func recommendCmd() *cobra.Command {
	var (
		owner      string
		jsonOutput bool
		minRating  int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Compute recommendations from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(owner, minRating, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner scope (default: anonymous)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&minRating, "min-rating", -1, "seed rating threshold (default: from config)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a few sample movies into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed()
		},
	}
}
