// Package commands defines all Cobra CLI commands for the semdex binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/semdex/internal/audit"
	"github.com/54b3r/semdex/internal/config"
	"github.com/54b3r/semdex/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "semdex",
		Short: "semdex — semantic indexing and retrieval for document trees",
		Long: `semdex ingests document trees into a vector store and retrieves them by
semantic similarity.

It chunks and embeds markdown, code, and agent definition documents, indexes
them into named collections, and answers similarity searches, metadata
lookups, and retrieval-augmented questions over the result.

The vector store connection and ingestion tunables come from environment
variables or a YAML config file (~/.semdex/config.yaml).
See 'semdex --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.semdex/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewSearchCmd(),
		NewRagCmd(),
		NewCollectionsCmd(),
		NewAuditCmd(),
		NewEnrichCmd(),
		NewRunsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
