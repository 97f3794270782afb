package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/recruiter-scout/internal/config"
	"github.com/JakeFAU/recruiter-scout/internal/searchkey"
)

func newKeysCmd() *cobra.Command {
	var searchURL string
	cmd := &cobra.Command{
		Use:   "keys <query> <page>",
		Short: "Prints the index key, previous-page key and URL for a query",
		Args:  cobra.ExactArgs(2),
		// No index or logger is needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[1])
			if err != nil || page < 1 {
				return fmt.Errorf("page must be a positive integer, got %q", args[1])
			}
			key := searchkey.FromSearchQuery(args[0], page)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:  %s\n", key)
			if page > 1 {
				fmt.Fprintf(out, "prev: %s\n", key.Prev())
			}
			fmt.Fprintf(out, "url:  %s\n", searchkey.SearchURL(searchURL, args[0], page))
			return nil
		},
	}
	cmd.Flags().StringVar(&searchURL, "search-url", config.DefaultSearchURL, "search URL template (keywords, page)")
	return cmd
}
