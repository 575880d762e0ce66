// Command lakeutil reports table versions and removes duplicate rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	lakeutil "github.com/BrobridgeOrg/go-lakeutil"
	"github.com/BrobridgeOrg/go-lakeutil/internal/logger"
)

type globalFlags struct {
	catalog    string
	catalogURI string
	warehouse  string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if lakeutil.IsCommitConflict(err) {
			fmt.Fprintln(os.Stderr, "the table changed while the command ran; run it again")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "lakeutil",
		Short:         "Table version and deduplication tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.catalog, "catalog", "", "Catalog: a SQLite database path, or a REST catalog URL with --catalog-uri")
	pf.StringVar(&flags.catalogURI, "catalog-uri", "", "REST catalog URL")
	pf.StringVar(&flags.warehouse, "warehouse", "", "Warehouse location")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(newVersionCmd(flags), newDedupCmd(flags))
	return rootCmd
}

// openClient builds a client from LAKEUTIL_* settings overridden by the
// flags that were set.
func openClient(cmd *cobra.Command, flags *globalFlags) (*lakeutil.Client, error) {
	cfg, err := lakeutil.LoadConfig("LAKEUTIL")
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("catalog") {
		cfg.Catalog.Type = lakeutil.CatalogSQL
		cfg.Catalog.Path = flags.catalog
	}
	if pf.Changed("catalog-uri") {
		cfg.Catalog.Type = lakeutil.CatalogREST
		cfg.Catalog.URI = flags.catalogURI
		if pf.Changed("catalog") {
			cfg.Catalog.Name = flags.catalog
		}
	}
	if pf.Changed("warehouse") {
		cfg.Warehouse = flags.warehouse
	}
	if pf.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if pf.Changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}

	cfg.Logger = logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	return lakeutil.NewClientFromConfig(cmd.Context(), cfg)
}
