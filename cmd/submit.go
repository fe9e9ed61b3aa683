package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/danielolaszy/ticketrelay/pkg/models"
	"github.com/spf13/cobra"
)

// submitCmd relays a single ticket given on the command line.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Relay a single ticket and print the result",
	Long: `Relay a single ticket without starting the server.

Example:
  ticketrelay submit --title "Bug-100" --description "login fails" --label bug --assignee octocat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		var ticket models.Ticket
		var err error
		if ticket.Title, err = flags.GetString("title"); err != nil {
			return err
		}
		if ticket.Description, err = flags.GetString("description"); err != nil {
			return err
		}
		if ticket.Labels, err = flags.GetStringArray("label"); err != nil {
			return err
		}
		if ticket.Assignees, err = flags.GetStringArray("assignee"); err != nil {
			return err
		}
		if ticket.TicketID, err = flags.GetString("ticket-id"); err != nil {
			return err
		}

		svc, _, err := newRelay(cfg)
		if err != nil {
			return err
		}

		result, err := svc.SubmitTicket(cmd.Context(), ticket)
		if err != nil {
			return fmt.Errorf("failed to relay ticket: %w", err)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	submitCmd.Flags().String("title", "", "ticket title, matched against existing issue titles")
	submitCmd.Flags().String("description", "", "ticket description")
	submitCmd.Flags().StringArray("label", []string{}, "label to apply (repeatable)")
	submitCmd.Flags().StringArray("assignee", []string{}, "user to assign (repeatable)")
	submitCmd.Flags().String("ticket-id", "", "external ticket id (required in create mode)")
}
