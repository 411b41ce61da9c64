package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	decayOwnerFlag string

	decayCmd = &cobra.Command{
		Use:   "decay",
		Short: "Run one decay pass over an owner's memories",
		Long:  longDecay,
		RunE: func(cmd *cobra.Command, args []string) error {
			if decayOwnerFlag == "" {
				return fmt.Errorf("decay requires --owner")
			}

			manager, err := buildManager(cmd.Context())

			if err != nil {
				return err
			}

			affected, err := manager.RunDecay(cmd.Context(), decayOwnerFlag)

			if err != nil {
				return err
			}

			log.Info("decay pass complete", "ownerId", decayOwnerFlag, "affected", affected)

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(decayCmd)

	decayCmd.Flags().StringVarP(&decayOwnerFlag, "owner", "o", "", "Owner whose memories should decay")
}

var longDecay = `
Run a single decay pass: every memory the owner holds loses signal
according to the configured half-life.  Intended to run on a schedule,
for example from cron.

Examples:
  neurostore decay --owner user-123
`
