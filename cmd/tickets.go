package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/supportbot/internal/tickets"
)

var ticketStatuses []string

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List persisted tickets",
	Long:  `Lists tickets from the database, newest first. Use --status to filter by unanswered, answered or closed.`,
	RunE:  runTickets,
}

func init() {
	ticketsCmd.Flags().StringSliceVar(&ticketStatuses, "status", nil, "only show tickets with these statuses")
	rootCmd.AddCommand(ticketsCmd)
}

func runTickets(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	var statuses []tickets.Status
	for _, s := range ticketStatuses {
		statuses = append(statuses, tickets.Status(s))
	}
	list, err := tickets.NewStore(database).List(cmd.Context(), statuses...)
	if err != nil {
		return fmt.Errorf("listing tickets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No tickets.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tSESSION\tCREATED\tDETAILS")
	for _, t := range list {
		status := string(t.Status)
		if t.ClosedBy != "" {
			status += " (" + string(t.ClosedBy) + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, status, t.ProblemType, t.SessionID, t.CreatedAt.Format(time.DateTime), truncate(t.ProblemDetails, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
