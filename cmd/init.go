package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harshul/devup/internal/blueprint"
	"github.com/harshul/devup/internal/ui"
	"github.com/spf13/cobra"
)

// initCmd writes the default configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default .devup.yaml",
	Long: `The init command writes the built-in project layout to .devup.yaml:
- backend and frontend directories and ports
- build, install and run arguments
- readiness timeouts
- database service and setup script names

Edit the file to match your project; fields left out keep their defaults.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("output", "o", blueprint.FileName, "Output file path for the configuration")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(e.root, outputPath)
	}
	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s. Use --force to overwrite", outputPath)
	}

	bp := blueprint.Default(e.ops.DefaultServiceName())
	bp.Name = filepath.Base(e.root)
	if err := blueprint.Write(outputPath, bp); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	ui.Success(fmt.Sprintf("Configuration written to %s", outputPath))
	ui.Info("Run 'devup' to start the stack")
	return nil
}
