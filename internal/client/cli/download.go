package cli

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/filex"
	"github.com/dmitrijs2005/kycvault/internal/netx"

	gs "github.com/dmitrijs2005/kycvault/internal/server/grpc"
)

type downloaded struct {
	Artifact string `json:"artifact"`
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
}

func (a *App) newDownloadCmd() *cobra.Command {
	var (
		dir       string
		artifacts []string
	)
	cmd := &cobra.Command{
		Use:   "download <verification-id>",
		Short: "Fetch a record's artifacts through their presigned URLs",
		Example: `  kycvault download 3f1c... --dir ./evidence
  kycvault download 3f1c... --artifact id_card`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, name := range artifacts {
				if !slices.Contains(common.ArtifactNames, name) {
					return fmt.Errorf("%w: unknown artifact %q (want one of %s)",
						common.ErrorValidation, name, strings.Join(common.ArtifactNames, ", "))
				}
			}

			q, err := a.Queries(ctx)
			if err != nil {
				return err
			}
			bundle, err := q.GetVerification(ctx, &gs.GetVerificationRequest{ID: args[0]})
			if err != nil {
				return err
			}

			target, err := filex.EnsureSubdDir(filepath.Join(dir, bundle.Record.ID))
			if err != nil {
				return err
			}

			var out []downloaded
			for _, name := range artifacts {
				link, ok := bundle.Downloads[name]
				if !ok || !link.Available {
					return fmt.Errorf("%s of %s: %w", name, bundle.Record.ID, common.ErrorNotFound)
				}
				body, err := netx.DownloadPresigned(ctx, a.httpClient, link.URL)
				if err != nil {
					return fmt.Errorf("download %s: %w", name, err)
				}
				dst := filepath.Join(target, path.Base(link.Key))
				if err := filex.WriteFileAtomic(dst, body); err != nil {
					return err
				}
				out = append(out, downloaded{Artifact: name, Path: dst, Bytes: len(body)})
			}
			return a.printJSON(out)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "downloads", "target directory; files land in <dir>/<verification-id>/")
	cmd.Flags().StringSliceVar(&artifacts, "artifact", common.ArtifactNames, "artifacts to fetch")
	return cmd
}
