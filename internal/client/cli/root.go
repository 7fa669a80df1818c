package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kycvault/internal/server/config"
)

// NewRootCmd builds the kycvault command tree.
func (a *App) NewRootCmd() *cobra.Command {
	var defaults config.Config
	defaults.LoadDefaults()

	root := &cobra.Command{
		Use:           "kycvault",
		Short:         "Store and query KYC verification records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "JSON config file")
	pf.StringVar(&a.flags.endpoint, "s3-endpoint", defaults.S3BaseEndpoint, "S3 base endpoint")
	pf.StringVar(&a.flags.bucket, "bucket", defaults.S3Bucket, "bucket holding the vault")
	pf.StringVar(&a.flags.region, "region", defaults.S3Region, "S3 region")
	pf.StringVar(&a.flags.accessKey, "access-key", defaults.S3RootUser, "S3 access key")
	pf.StringVar(&a.flags.secretKey, "secret-key", defaults.S3RootPassword, "S3 secret key")
	pf.BoolVar(&a.flags.pathStyle, "path-style", defaults.S3UsePathStyle, "use path-style bucket addressing")
	pf.BoolVar(&a.flags.conditional, "conditional-writes", defaults.ConditionalWrites, "guard index writes with ETag preconditions")
	pf.DurationVar(&a.flags.presignTTL, "presign-ttl", defaults.PresignTTL, "lifetime of download URLs")
	pf.StringVar(&a.flags.logLevel, "log-level", defaults.LogLevel, "log level")
	pf.StringVar(&a.flags.remote, "remote", "", "query server address; reads go over gRPC when set")

	root.AddCommand(
		a.newSaveCmd(),
		a.newGetCmd(),
		a.newSubjectCmd(),
		a.newDailyCmd(),
		a.newMonthlyCmd(),
		a.newSearchCmd(),
		a.newStatsCmd(),
		a.newRecentCmd(),
		a.newReconcileCmd(),
		a.newDownloadCmd(),
	)
	return root
}

// Execute runs the command tree with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	defer a.close()
	root := a.NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
