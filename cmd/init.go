package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/supportbot/internal/config"
)

var (
	initAdminChat string
	initForce     bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a supportbot configuration",
	Long: `Writes a configuration file. On a terminal without --admin-chat it asks for
the operator chat, database, hand-off delay and admin API settings; otherwise
it writes defaults. The Telegram token is best supplied through
SUPPORTBOT_TELEGRAM__TOKEN or a .env file rather than stored in the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgFile)
		}

		out := cmd.OutOrStdout()
		cfg := config.DefaultConfig()
		cfg.AdminChatID = initAdminChat
		if initAdminChat == "" && isTerminal(cmd.InOrStdin()) {
			if err := config.RunWizard(cmd.InOrStdin(), out, cfg); err != nil {
				return err
			}
		}
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", cfgFile)
		if cfg.AdminChatID == "" {
			fmt.Fprintln(out, "Set admin_chat_id to the operator chat before running the bot.")
		}
		return nil
	},
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	initCmd.Flags().StringVar(&initAdminChat, "admin-chat", "", "administrative chat id (skips the prompts)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
