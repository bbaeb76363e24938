package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/validate"
)

var errDuplicatesFound = eris.New("possible duplicates found")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a business against the listings at its location",
	Long:  "Prints every existing listing the candidate conflicts with. Exits non-zero when any conflict is found.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("check"); err != nil {
			return err
		}
		ctx := cmd.Context()

		cand := dedupe.Candidate{}
		cand.Name, _ = cmd.Flags().GetString("name")
		cand.LocationID, _ = cmd.Flags().GetString("location")
		cand.Email, _ = cmd.Flags().GetString("email")
		cand.Phone, _ = cmd.Flags().GetString("phone")
		cand.ExcludeID, _ = cmd.Flags().GetString("exclude")
		asJSON, _ := cmd.Flags().GetBool("json")

		if err := validate.ValidateCandidate(cand); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		issues, err := newGuard(st, validate.PolicyWarn).Issues(ctx, cand)
		if err != nil {
			return eris.Wrap(err, "check")
		}

		if err := printIssues(cmd.OutOrStdout(), issues, asJSON); err != nil {
			return err
		}
		if len(issues) > 0 {
			return errDuplicatesFound
		}
		return nil
	},
}

func printIssues(w io.Writer, issues []dedupe.Issue, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"issues": issues})
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(w, "No duplicates found.")
		return nil
	}
	for _, is := range issues {
		_, _ = fmt.Fprintf(w, "- [%s] %s (id %s)\n", is.Rule, is.Message, is.BusinessID)
	}
	return nil
}

func init() {
	checkCmd.Flags().String("name", "", "business name")
	checkCmd.Flags().String("location", "", "location ID (required)")
	checkCmd.Flags().String("email", "", "contact email")
	checkCmd.Flags().String("phone", "", "contact phone")
	checkCmd.Flags().String("exclude", "", "ID of the business being edited")
	checkCmd.Flags().Bool("json", false, "print issues as JSON")
	_ = checkCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(checkCmd)
}
