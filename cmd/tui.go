package cmd

import (
	"os/user"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/mathpad/internal/app"
	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/session"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the terminal client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

// runTUI opens the store, builds the model gateway and launches the TUI
// for the local user. Logs are discarded so they do not tear the screen.
func runTUI(cmd *cobra.Command) error {
	_ = godotenv.Load()

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	log := logging.Nop()
	cfg := llm.Resolve()
	events := st.EventRepo()

	username, name := "local", "Local user"
	if u, err := user.Current(); err == nil {
		username = u.Username
		if u.Name != "" {
			name = u.Name
		}
	}

	return app.Run(&screen.Env{
		State:    session.New(username, name, canvas.DefaultSettings()),
		Model:    gateway.New(cfg, events, log),
		Events:   events,
		Provider: cfg.Provider,
		Log:      log,
	})
}
