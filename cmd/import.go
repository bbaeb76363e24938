package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/validate"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import listings from CSV or XLSX files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		files, _ := cmd.Flags().GetStringSlice("file")
		if len(files) == 0 {
			return eris.New("at least one --file is required")
		}
		if cmd.Flags().Changed("policy") {
			cfg.Import.Policy, _ = cmd.Flags().GetString("policy")
		}
		if cmd.Flags().Changed("skip-duplicates") {
			cfg.Import.SkipDuplicates, _ = cmd.Flags().GetBool("skip-duplicates")
		}
		if cmd.Flags().Changed("sheet") {
			cfg.Import.Sheet, _ = cmd.Flags().GetString("sheet")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		policy, err := validate.ParsePolicy(cfg.Import.Policy)
		if err != nil {
			return err
		}

		rows, err := importer.ReadFiles(ctx, files, cfg.Import.Sheet)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		im := importer.New(st, newGuard(st, policy), importer.Options{SkipDuplicates: cfg.Import.SkipDuplicates})
		res, err := im.Run(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		out := cmd.OutOrStdout()
		for _, f := range res.Details {
			for _, is := range f.Issues {
				_, _ = fmt.Fprintf(out, "line %d %q: %s\n", f.Line, f.Name, is.Message)
			}
		}
		_, _ = fmt.Fprintf(out, "created=%d flagged=%d skipped=%d invalid=%d\n",
			res.Created, res.Flagged, res.Skipped, res.Invalid)

		zap.L().Info("import finished",
			zap.Strings("files", files),
			zap.String("policy", string(policy)),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringSlice("file", nil, "CSV or XLSX file to import (repeatable)")
	importCmd.Flags().String("policy", "", "duplicate policy: warn or reject (default from config)")
	importCmd.Flags().Bool("skip-duplicates", false, "drop flagged rows instead of importing them")
	importCmd.Flags().String("sheet", "", "worksheet name for XLSX files (default first sheet)")
	rootCmd.AddCommand(importCmd)
}
