package cmd

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.yaml"

// NewRootCmd builds the command tree with shared application state.
func NewRootCmd() *cobra.Command {
	a := NewAppState()

	rootCmd := &cobra.Command{
		Use:   "cctp-orchestrator",
		Short: "Orchestrates CCTP USDC transfers between EVM chains",
	}

	addAppPersistantFlags(rootCmd, a)

	rootCmd.AddCommand(
		addStartFlags(Start(a)),
		Chains(a),
	)

	return rootCmd
}
