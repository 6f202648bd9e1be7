package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathpad/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mathpad",
	Short: "AI math assistant",
	Long: "Mathpad solves handwritten or uploaded math problems with a multimodal model,\n" +
		"and offers a math tutor chat, generated quizzes and a difficulty classifier.\n\n" +
		"Run without a subcommand to start the terminal client, or use 'mathpad serve'\n" +
		"for the web app. Set GEMINI_API_KEY (or MATHPAD_LLM_PROVIDER with the\n" +
		"matching MATHPAD_*_API_KEY) to enable the model.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MATHPAD_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then MATHPAD_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the event database selected by resolveDBPath.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
