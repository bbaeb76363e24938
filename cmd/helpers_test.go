//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/config"
	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// testConfig returns a valid config backed by a temp SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "bizdir_test.db")
	c.Dedupe.Thresholds = dedupe.DefaultThresholds()
	c.Dedupe.MinClusterSize = 2
	c.Audit.MinClusterSize = 3
	c.Audit.Concurrency = 2
	c.Audit.Format = "text"
	c.Audit.AnnotateNote = "Legitimate multi-tenant location"
	c.Import.Policy = "warn"
	c.Server.Port = 8080
	return c
}

// seedStore writes businesses into the store named by cfg.
func seedStore(t *testing.T, bs ...directory.Business) {
	t.Helper()
	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	for i := range bs {
		require.NoError(t, st.CreateBusiness(ctx, &bs[i]))
	}
}

// runCmd executes c.RunE with flags applied, restoring flag state afterwards.
func runCmd(t *testing.T, c *cobra.Command, flags map[string]string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(c) })
	for k, v := range flags {
		require.NoError(t, c.Flags().Set(k, v))
	}

	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	defer c.SetContext(nil) //nolint:staticcheck
	defer c.SetOut(nil)

	err := c.RunE(c, nil)
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}
