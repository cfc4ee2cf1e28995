package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"postrelay/models"
	"postrelay/utils"
)

var (
	tokenProfile string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a webhook bearer token signed with WEBHOOK_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		if settings.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_JWT_SECRET is not set")
		}
		now := time.Now()
		claims := &models.WebhookClaims{
			Issuer:   settings.WebhookIssuer,
			Subject:  tokenSubject,
			IssuedAt: now.Unix(),
			Profile:  tokenProfile,
		}
		if tokenTTL > 0 {
			claims.ExpiresAt = now.Add(tokenTTL).Unix()
		}
		token, err := utils.CreateWebhookJWT(claims, []byte(settings.WebhookSecret))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenProfile, "profile", "", "restrict the token to one profile")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "wordpress", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, 0 for no expiry")
	rootCmd.AddCommand(tokenCmd)
}
