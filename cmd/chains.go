package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Chains prints the configured chains and their CCTP contracts.
func Chains(a *AppState) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List configured chains",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := a.Config.Registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range registry.Chains() {
				fmt.Fprintf(out, "%-18s domain=%-3d chain-id=%-10d token-messenger=%s message-transmitter=%s usdc=%s\n",
					c.Name, c.Domain, c.ChainID, c.TokenMessenger.Hex(), c.MessageTransmitter.Hex(), c.USDC.Hex())
			}
			return nil
		},
	}
}
