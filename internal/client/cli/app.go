package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kycvault/internal/server"
	"github.com/dmitrijs2005/kycvault/internal/server/config"

	gs "github.com/dmitrijs2005/kycvault/internal/server/grpc"
)

// openVault builds the in-process vault. Replaced in tests.
var openVault = func(ctx context.Context, cfg *config.Config) (*server.App, error) {
	return server.NewApp(ctx, cfg)
}

type App struct {
	flags      globalFlags
	out        io.Writer
	httpClient *http.Client

	config  *config.Config
	vault   *server.App
	queries gs.VerificationQueryServer
	closers []func() error
}

type globalFlags struct {
	configPath  string
	endpoint    string
	bucket      string
	region      string
	accessKey   string
	secretKey   string
	pathStyle   bool
	conditional bool
	presignTTL  time.Duration
	logLevel    string
	remote      string
}

func NewApp(out io.Writer) *App {
	return &App{out: out, httpClient: &http.Client{Timeout: 5 * time.Minute}}
}

// loadConfig reads defaults, the JSON file and the environment, then applies
// the flags the user actually set.
func (a *App) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("s3-endpoint") {
		cfg.S3BaseEndpoint = a.flags.endpoint
	}
	if f.Changed("bucket") {
		cfg.S3Bucket = a.flags.bucket
	}
	if f.Changed("region") {
		cfg.S3Region = a.flags.region
	}
	if f.Changed("access-key") {
		cfg.S3RootUser = a.flags.accessKey
	}
	if f.Changed("secret-key") {
		cfg.S3RootPassword = a.flags.secretKey
	}
	if f.Changed("path-style") {
		cfg.S3UsePathStyle = a.flags.pathStyle
	}
	if f.Changed("conditional-writes") {
		cfg.ConditionalWrites = a.flags.conditional
	}
	if f.Changed("presign-ttl") {
		cfg.PresignTTL = a.flags.presignTTL
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	a.config = cfg
	return nil
}

func (a *App) openVault(ctx context.Context) (*server.App, error) {
	if a.vault == nil {
		v, err := openVault(ctx, a.config)
		if err != nil {
			return nil, err
		}
		a.vault = v
	}
	return a.vault, nil
}

// Queries returns the remote client when --remote is set, the in-process
// service otherwise.
func (a *App) Queries(ctx context.Context) (gs.VerificationQueryServer, error) {
	if a.queries != nil {
		return a.queries, nil
	}
	if a.flags.remote != "" {
		conn, err := gs.Dial(a.flags.remote)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", a.flags.remote, err)
		}
		a.closers = append(a.closers, conn.Close)
		a.queries = gs.NewClient(conn)
		return a.queries, nil
	}
	v, err := a.openVault(ctx)
	if err != nil {
		return nil, err
	}
	a.queries = v.Queries()
	return a.queries, nil
}

func (a *App) close() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
