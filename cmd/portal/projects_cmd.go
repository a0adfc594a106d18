package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jrsteele09/school-portal/portal"
	"github.com/spf13/cobra"
)

func (c *cli) projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage project requests",
	}
	cmd.AddCommand(c.projectsListCmd(), c.projectsSubmitCmd(), c.projectsSetStatusCmd())
	return cmd
}

func (c *cli) projectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List submitted project requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			requests, err := a.service.ListProjectRequests(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tTYPE\tSTATUS")
			for _, r := range requests {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Email, r.ProjectType, r.Status)
			}
			return w.Flush()
		},
	}
}

func (c *cli) projectsSubmitCmd() *cobra.Command {
	var req portal.ProjectRequest

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a project request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			created, err := a.service.SubmitProjectRequest(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted project request %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Contact name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Contact phone")
	cmd.Flags().StringVar(&req.ProjectType, "type", "", "Project type")
	cmd.Flags().StringVar(&req.Description, "description", "", "Project description")
	return cmd
}

func (c *cli) projectsSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change the status of a project request",
		Long: fmt.Sprintf("Change the status of a project request. Known statuses: %s, %s, %s, %s.",
			portal.ProjectStatusPending, portal.ProjectStatusAccepted, portal.ProjectStatusRejected, portal.ProjectStatusDone),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.service.UpdateProjectRequestStatus(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project request %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}
