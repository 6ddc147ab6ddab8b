package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/supportbot/internal/audit"
)

var (
	auditActor  string
	auditAction string
	auditTicket string
	auditSince  time.Duration
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit trail",
	Long:  `Prints audit entries, newest first, filtered by session, action, ticket or age.`,
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditActor, "actor", "", "session or operator id")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "action name, e.g. ticket_created")
	auditCmd.Flags().StringVar(&auditTicket, "ticket", "", "ticket id")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only entries newer than this, e.g. 24h")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of entries")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	filter := audit.QueryFilter{
		ActorID:  auditActor,
		Action:   audit.Action(auditAction),
		TicketID: auditTicket,
		Limit:    auditLimit,
	}
	if auditSince > 0 {
		since := time.Now().Add(-auditSince)
		filter.Since = &since
	}

	entries, err := audit.NewStore(database).Query(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("querying audit trail: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTICKET\tSUMMARY")
	for _, e := range entries {
		ticket := e.TicketID
		if ticket == "" {
			ticket = "-"
		}
		fmt.Fprintf(w, "%s\t%s:%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.DateTime), e.ActorType, e.ActorID, e.Action, ticket, truncate(e.Summary, 70))
	}
	return w.Flush()
}
