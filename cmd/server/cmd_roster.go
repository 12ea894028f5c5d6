package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/spf13/cobra"
)

var (
	rosterLetter string
	rosterJSON   bool
)

var rosterCmd = &cobra.Command{
	Use:   "roster [query]",
	Short: "Print the operator roster",
	Long: `Loads the configured roster source and prints the letter groups whose
operator names contain the query (case-insensitive).

Example:
  operator-board roster ash
  operator-board roster --letter B`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoster,
}

func runRoster(cmd *cobra.Command, args []string) error {
	var query string
	if len(args) > 0 {
		query = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
	defer cancel()
	idx, err := roster.Load(ctx, &http.Client{Timeout: cfg.FetchTimeout}, cfg.RosterSource)
	if err != nil {
		return err
	}

	groups := idx.Filter(query, rosterLetter)
	out := cmd.OutOrStdout()
	if rosterJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if len(groups) == 0 {
		fmt.Fprintln(out, "No operators match.")
		return nil
	}
	for _, g := range groups {
		fmt.Fprintln(out, g.Letter)
		for _, op := range g.Operators {
			fmt.Fprintf(out, "  %-16s %s / %s\n", op.Name, op.Primary, op.Secondary)
		}
	}
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintf(out, "%d of %d operators\n", countOperators(groups), idx.Len())
	return nil
}

func countOperators(groups []roster.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Operators)
	}
	return n
}
