package main

import (
	"lingua-stream/internal/ports/input"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configDir string
	envName   string
	verbose   bool

	registry input.ModelRegistry
	library  input.ModelLibrary

	remoteOnly    bool
	historyModel  string
	historyStatus string
	historyLimit  int

	chatModel    string
	chatSystem   string
	chatAPIKey   string
	chatAPIURL   string
	chatNoStream bool

	rootCmd = &cobra.Command{
		Use:           "lingoctl",
		Short:         "Chat with remote and on-device language models",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// --- Models ---
	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "Manage on-device model files",
	}
	modelsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List local catalog entries and remote models",
		Args:  cobra.NoArgs,
		RunE:  runModelsList, // Defined in cmd_models.go
	}
	modelsPullCmd = &cobra.Command{
		Use:   "pull [model_id]",
		Short: "Download a model file from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelsPull, // Defined in cmd_models.go
	}
	modelsRemoveCmd = &cobra.Command{
		Use:     "rm [model_id]",
		Short:   "Delete a downloaded model file",
		Aliases: []string{"remove"},
		Args:    cobra.ExactArgs(1),
		RunE:    runModelsRemove, // Defined in cmd_models.go
	}
	modelsHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded downloads",
		Args:  cobra.NoArgs,
		RunE:  runModelsHistory, // Defined in cmd_models.go
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChat, // Defined in cmd_chat.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "./configs", "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "the environment to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level")

	modelsListCmd.Flags().BoolVar(&remoteOnly, "remote-only", false, "skip on-device models")
	modelsHistoryCmd.Flags().StringVar(&historyModel, "model", "", "filter by catalog id")
	modelsHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "filter by COMPLETED, FAILED or CANCELLED")
	modelsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of records")

	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model id, local:<id> for on-device models")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "system prompt")
	chatCmd.Flags().StringVar(&chatAPIKey, "api-key", "", "remote API key (defaults to the configured key)")
	chatCmd.Flags().StringVar(&chatAPIURL, "api-url", "", "remote base URL (defaults to the configured URL)")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the whole answer")
	_ = chatCmd.MarkFlagRequired("model")

	modelsCmd.AddCommand(modelsListCmd, modelsPullCmd, modelsRemoveCmd, modelsHistoryCmd)
	rootCmd.AddCommand(modelsCmd, chatCmd)
}
