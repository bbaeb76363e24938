package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/bizdir/internal/audit"
	"github.com/sells-group/bizdir/internal/server"
	"github.com/sells-group/bizdir/internal/validate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cl := newClassifier()
		srv := server.New(st,
			validate.NewGuard(st, cl, validate.PolicyReject),
			audit.NewAuditor(st, cl, cfg.Dedupe.MinClusterSize),
			server.Options{
				Port:         cfg.Server.Port,
				RateLimit:    cfg.Server.RateLimit,
				RateBurst:    cfg.Server.RateBurst,
				CORSOrigins:  cfg.Server.CORSOrigins,
				AuditMinSize: cfg.Audit.MinClusterSize,
			},
		)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
