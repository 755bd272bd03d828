package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/harshul/devup/internal/doctor"
	"github.com/harshul/devup/internal/provisioner"
	"github.com/harshul/devup/internal/ui"
	"github.com/spf13/cobra"
)

// doctorCmd reports the state of every prerequisite
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report missing prerequisites",
	Long: `The doctor command checks the toolchains the stack needs (JDK, Maven,
Node.js, the frontend package manager and the MySQL client) and prints
what is missing together with an install hint.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	manager := provisioner.Detect(filepath.Join(e.root, e.bp.Frontend.Dir)).Manager
	report := doctor.New(e.locator, e.runner, manager).Diagnose(cmd.Context())

	ui.Highlight("Prerequisites for", e.root)
	for _, c := range report.Checks {
		switch {
		case c.OK:
			ui.Success(fmt.Sprintf("%s %s (%s)", c.Name, c.Version, c.Path))
		case c.Version != "":
			ui.Warn(fmt.Sprintf("%s: need %s, found %s", c.Name, c.Requirement, c.Version))
		default:
			ui.Warn(fmt.Sprintf("%s: not found, need %s", c.Name, c.Requirement))
		}
		if !c.OK && c.Hint != "" {
			ui.Bullet(c.Hint)
		}
	}

	if report.Healthy() {
		ui.Success("Environment looks ready.")
		return nil
	}
	return errors.New("missing prerequisites: run 'devup --auto-setup-only' or install them manually")
}
