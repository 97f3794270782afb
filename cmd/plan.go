package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/recruiter-scout/internal/app"
	"github.com/JakeFAU/recruiter-scout/internal/browser"
	"github.com/JakeFAU/recruiter-scout/internal/driver"
)

func newPlanCmd() *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Lists what the driver would do without opening anything",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			names, err := a.Companies(cmd.Context())
			if err != nil {
				return err
			}
			d, err := a.Driver(browser.NewLog(a.Logger))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PAGE\tCOMPANY\tACTION\tKEY\tURL")
			for _, step := range d.Plan(names) {
				if pending && step.Action != driver.ActionOpen {
					continue
				}
				company := step.Company
				if company == "" {
					company = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", step.Page, company, step.Action, step.Key, step.URL)
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write plan: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "only list pages that would be opened")
	return cmd
}
