// Package doctor checks the machine for the toolchains and services the
// stack needs and reports what is missing.
package doctor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/harshul/devup/internal/provisioner"
	"github.com/harshul/devup/internal/toolchain"
)

// RequiredJavaMajor is the oldest JDK the backend builds with.
const RequiredJavaMajor = 17

// Resolver finds tools.
type Resolver interface {
	Resolve(ctx context.Context, spec toolchain.Spec) (toolchain.Path, bool)
}

// Check is the outcome for one prerequisite.
type Check struct {
	Name        string // JDK, Maven, ...
	Requirement string // what the user has to install, e.g. "JDK 17+"
	OK          bool
	Version     string
	Path        string
	Hint        string
}

// Report contains the full prerequisite check results.
type Report struct {
	Checks []Check
}

// Healthy reports whether every prerequisite is satisfied.
func (r Report) Healthy() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Missing lists the requirements that are not met, each with the current
// state when that helps ("JDK 17+ (current: 11)").
func (r Report) Missing() []string {
	var missing []string
	for _, c := range r.Checks {
		if c.OK {
			continue
		}
		item := c.Requirement
		if c.Hint != "" {
			item += " (" + c.Hint + ")"
		}
		missing = append(missing, item)
	}
	return missing
}

// Doctor runs the checks.
type Doctor struct {
	resolver Resolver
	runner   toolchain.Prober
	manager  provisioner.PackageManager
}

// New returns a Doctor that expects the frontend to use manager.
func New(resolver Resolver, runner toolchain.Prober, manager provisioner.PackageManager) *Doctor {
	if manager == "" {
		manager = provisioner.NPM
	}
	return &Doctor{resolver: resolver, runner: runner, manager: manager}
}

// Diagnose checks JDK, build tool, runtime, package manager and database
// client, in that order.
func (d *Doctor) Diagnose(ctx context.Context) Report {
	var r Report
	r.Checks = append(r.Checks, d.checkJava(ctx))
	r.Checks = append(r.Checks, d.checkTool(ctx, "Maven", "Maven 3.6+", toolchain.Maven, "-v"))
	r.Checks = append(r.Checks, d.checkTool(ctx, "Node.js", "Node.js 16+", toolchain.Node, "-v"))

	pm := d.checkTool(ctx, string(d.manager), packageManagerRequirement(d.manager), toolchain.PackageManagerSpec(d.manager), "--version")
	if !pm.OK {
		pm.Hint = provisioner.InstallHint(d.manager)
	}
	r.Checks = append(r.Checks, pm)

	r.Checks = append(r.Checks, d.checkTool(ctx, "MySQL", "MySQL 8.0+", toolchain.MySQLClient, "--version"))
	return r
}

func packageManagerRequirement(pm provisioner.PackageManager) string {
	if pm == provisioner.NPM {
		return "npm (bundled with Node.js)"
	}
	return string(pm)
}

func (d *Doctor) checkJava(ctx context.Context) Check {
	check := Check{Name: "JDK", Requirement: fmt.Sprintf("JDK %d+", RequiredJavaMajor)}

	path, ok := d.resolver.Resolve(ctx, toolchain.Java)
	if !ok {
		check.Hint = "not found"
		return check
	}
	check.Path = path.String()

	result, err := d.runner.Run(ctx, path.Command("-version"))
	if err != nil || !result.OK() {
		check.Hint = "not found"
		return check
	}

	major := ParseJavaMajor(result.Output)
	check.Version = firstLine(result.Output)
	if major < RequiredJavaMajor {
		if major > 0 {
			check.Hint = fmt.Sprintf("current: %d", major)
		} else {
			check.Hint = "version unknown"
		}
		return check
	}
	check.OK = true
	return check
}

func (d *Doctor) checkTool(ctx context.Context, name, requirement string, spec toolchain.Spec, versionArg string) Check {
	check := Check{Name: name, Requirement: requirement}

	path, ok := d.resolver.Resolve(ctx, spec)
	if !ok {
		return check
	}
	check.OK = true
	check.Path = path.String()
	if result, err := d.runner.Run(ctx, path.Command(versionArg)); err == nil && result.OK() {
		check.Version = firstLine(result.Output)
	}
	return check
}

var javaVersion = regexp.MustCompile(`"(\d+)(?:\.(\d+))?[^"]*"`)

// ParseJavaMajor extracts the major version from `java -version` output.
// Legacy "1.8.0_392" reports 8. Returns -1 when no version is found.
func ParseJavaMajor(text string) int {
	m := javaVersion.FindStringSubmatch(text)
	if m == nil {
		return -1
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	if major == 1 && m[2] != "" {
		if minor, err := strconv.Atoi(m[2]); err == nil {
			major = minor
		}
	}
	return major
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
