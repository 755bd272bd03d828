package main

import (
	"os"

	"github.com/harshul/devup/internal/ui"
	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd builds, starts and supervises the local backend and frontend
var rootCmd = &cobra.Command{
	Use:   "devup",
	Short: "Start the local backend and frontend with one command",
	Long: `devup checks the machine for the required toolchains, frees the ports
the stack uses, builds the backend and frontend, starts both development
servers, waits for them to listen and opens the browser.

Press Ctrl+C to stop both services.

Usage:
  devup                    Build and run the stack
  devup --stop-only        Free the backend and frontend ports and exit
  devup --auto-setup-only  Run the machine setup script and exit
  devup doctor             Report missing prerequisites
  devup init               Write the default .devup.yaml`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUp,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("root", "", "Project root (default: current directory)")
	flags.StringP("config", "c", "", "Path to the configuration file (default: <root>/.devup.yaml)")
	flags.BoolP("verbose", "v", false, "Print diagnostic logs")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}
