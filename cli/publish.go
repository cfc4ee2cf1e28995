package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"postrelay/config"
	"postrelay/credentials"
	"postrelay/encoder"
	"postrelay/job"
	"postrelay/models"
)

var (
	publishPostID  int64
	publishProfile string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish one WordPress post synchronously",
	Long: `Run the full pipeline for a single post without going through the
queue, then print the outcome as JSON. Nothing is written to the ledgers.

Examples:
  postrelay publish --post-id 1234
  postrelay publish --post-id 1234 --profile news-site`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().Int64Var(&publishPostID, "post-id", 0, "WordPress post id (required)")
	publishCmd.Flags().StringVar(&publishProfile, "profile", "", "profile name (default profile when empty)")
	_ = publishCmd.MarkFlagRequired("post-id")
	rootCmd.AddCommand(publishCmd)
}

type publishReport struct {
	PostID   int64                  `json:"post_id"`
	Profile  string                 `json:"profile"`
	Stage    string                 `json:"stage"`
	Skipped  string                 `json:"skipped,omitempty"`
	MediaURL string                 `json:"media_url,omitempty"`
	Outcome  *models.PublishOutcome `json:"outcome,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func runPublish(cmd *cobra.Command, args []string) error {
	if publishPostID <= 0 {
		return fmt.Errorf("--post-id must be positive")
	}

	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	defer credentials.CloseDB()

	encoder.DetectImageMagick()
	p := job.NewProcessor(settings)
	profile, err := p.Profiles(publishProfile)
	if err != nil {
		return fmt.Errorf("load profile %q: %w", publishProfile, err)
	}

	res := p.PublishPost(cmd.Context(), profile, publishPostID)
	report := publishReport{
		PostID:   res.PostID,
		Profile:  res.Profile,
		Stage:    res.Stage,
		Skipped:  res.Skipped,
		MediaURL: res.MediaURL,
		Outcome:  res.Outcome,
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return res.Err
}
