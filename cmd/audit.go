package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Classify addresses shared by several businesses",
	Long:  "Groups listings by address and city, and reports each group as a legitimate multi-tenant location or suspected duplicate data.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("min-size") {
			cfg.Audit.MinClusterSize, _ = cmd.Flags().GetInt("min-size")
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Audit.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if cmd.Flags().Changed("format") {
			cfg.Audit.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("note") {
			cfg.Audit.AnnotateNote, _ = cmd.Flags().GetString("note")
		}
		annotate, _ := cmd.Flags().GetBool("annotate")

		if err := cfg.Validate("audit"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a := audit.NewAuditor(st, newClassifier(), cfg.Dedupe.MinClusterSize)
		report, err := a.Run(ctx, audit.Options{
			MinClusterSize: cfg.Audit.MinClusterSize,
			Concurrency:    cfg.Audit.Concurrency,
			Annotate:       annotate,
			Note:           cfg.Audit.AnnotateNote,
		})
		if err != nil {
			return eris.Wrap(err, "audit")
		}
		return audit.Render(cmd.OutOrStdout(), report, cfg.Audit.Format)
	},
}

func init() {
	auditCmd.Flags().Int("min-size", 0, "smallest address group to review (default from config)")
	auditCmd.Flags().Int("concurrency", 0, "parallel classification workers (default from config)")
	auditCmd.Flags().String("format", "", "output format: text, json or yaml (default from config)")
	auditCmd.Flags().Bool("annotate", false, "write a note on members of legitimate clusters")
	auditCmd.Flags().String("note", "", "annotation text (default from config)")
	rootCmd.AddCommand(auditCmd)
}
