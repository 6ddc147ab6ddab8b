package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/config"
)

var (
	consoleSession string
	consoleOnline  bool
)

const consoleAdminID = "admin"

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot from the terminal",
	Long: `Runs the bot with a terminal transport. Each input line is an event for the
current session: plain text, "!action" for a button, ">ref text" to reply to
a message, and "/as <id>" to switch sessions. Switch to the admin chat id to
act as the operator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) error {
			if c.AdminChatID == "" {
				c.AdminChatID = consoleAdminID
			}
			return c.Validate()
		})
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		out := cmd.OutOrStdout()
		console := bots.NewConsole(out, consoleSession)
		a, err := newApp(cfg, console, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if consoleOnline {
			a.registry.SetOperatorOnline(true)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fmt.Fprintf(out, "supportbot console: acting as %s, operator chat is %s\n", consoleSession, cfg.AdminChatID)
		// Events are applied before the next line is read so piped scripts
		// run in order.
		gateway := bots.NewGateway(bots.EventHandlerFunc(a.engine.Handle), logger.Named("gateway"))
		return console.Run(ctx, cmd.InOrStdin(), gateway)
	},
}

func init() {
	consoleCmd.Flags().StringVar(&consoleSession, "session", "user-1", "session id to start as")
	consoleCmd.Flags().BoolVar(&consoleOnline, "online", false, "start with the operator online")
	rootCmd.AddCommand(consoleCmd)
}
