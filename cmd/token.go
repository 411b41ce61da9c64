package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tokenOwnerFlag string

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for an owner",
		Long:  longToken,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenOwnerFlag == "" {
				return fmt.Errorf("token requires --owner")
			}

			if !viper.GetBool("auth.enabled") {
				return fmt.Errorf("auth is disabled in the config; tokens would not be checked")
			}

			token, err := buildAuth().IssueToken(tokenOwnerFlag)

			if err != nil {
				return err
			}

			fmt.Println(token)

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVarP(&tokenOwnerFlag, "owner", "o", "", "Owner the token grants access to")
}

var longToken = `
Issue a signed bearer token for an owner.  The token is valid for the
configured TTL and is verified by the serve command when auth.enabled
is set.

Examples:
  neurostore token --owner user-123
`
