package main

import (
	"fmt"
	"os"

	"github.com/DoyleJ11/operator-board/internal/config"
	"github.com/DoyleJ11/operator-board/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "operator-board",
	Short: "Operator roster and team board server",
	Long: `operator-board serves the operator roster and a five team board with
equipment fields. Team state is persisted per profile in the configured store.

Run without arguments to start the HTTP and websocket server.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rosterCmd.Flags().StringVar(&rosterLetter, "letter", "", "Only show the group for this letter")
	rosterCmd.Flags().BoolVar(&rosterJSON, "json", false, "Print groups as JSON")

	teamsCmd.PersistentFlags().StringVarP(&teamsProfile, "profile", "p", "", "Profile whose teams to act on (default: configured default profile)")
	teamsCmd.AddCommand(teamsExportCmd)
	teamsCmd.AddCommand(teamsClearCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(teamsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
