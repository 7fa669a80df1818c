package cli

import (
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/records"
)

func (a *App) newSaveCmd() *cobra.Command {
	var (
		req    records.SaveRequest
		status string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a finished verification",
		Long: `Store the ID card image, the selfie video and the verification metadata,
then update the id lookup, monthly index and daily summary.

Examples:
  kycvault save --email alice@example.com --id-image front.jpg \
    --video selfie.webm --status pass --score 0.93 --name "Alice Smith"

  kycvault save --email bob@example.com --id-image id.jpg --video v.mp4 \
    --status fail --score 0.2 --error "face mismatch"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			vault, err := a.openVault(ctx)
			if err != nil {
				return err
			}
			if err := vault.EnsureBucket(ctx); err != nil {
				return err
			}

			req.Status = models.Status(status)
			res, err := vault.Writer().Save(ctx, req)
			if res != nil {
				if perr := a.printJSON(res); perr != nil {
					return perr
				}
			}
			// a partial write still prints what was stored
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.RecordID, "id", "", "verification id (generated when empty)")
	f.StringVar(&req.Subject, "email", "", "subject e-mail")
	f.StringVar(&req.IDImagePath, "id-image", "", "path of the ID card JPEG")
	f.StringVar(&req.VideoPath, "video", "", "path of the selfie video")
	f.StringVar(&status, "status", "", "pass or fail")
	f.Float64Var(&req.ConfidenceScore, "score", 0, "confidence score in [0,1]")
	f.StringVar(&req.ErrorMessage, "error", "", "failure reason (fail only)")
	f.StringVar(&req.IDDetails.Name, "name", "", "name on the ID")
	f.StringVar(&req.IDDetails.IDNumber, "id-number", "", "document number")
	f.StringVar(&req.IDDetails.TypeOfID, "id-type", "", "document type")
	f.StringVar(&req.IDDetails.Country, "country", "", "issuing country")
	f.StringVar(&req.IDDetails.DateOfBirth, "dob", "", "date of birth")
	for _, name := range []string{"email", "id-image", "video", "status"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
