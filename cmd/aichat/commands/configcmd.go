package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiritledsoftware/ai/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage aichat configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the global config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GlobalConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter global config file",
	Long: `Write a starter configuration to the global config path. Refuses to
overwrite an existing file; edit the written file to point at your
endpoint.`,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.GlobalConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	cfg := &config.Config{
		Endpoint:          "http://localhost:8080/chat",
		Protocol:          "data",
		MaxToolRoundtrips: 5,
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}
