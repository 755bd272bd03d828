package toolchain

import (
	"context"

	"github.com/harshul/devup/internal/provisioner"
)

var nodeHomes = []string{"NODE_HOME", "NODEJS_HOME", "NVM_SYMLINK", "NVM_HOME"}

// Maven is the backend build tool.
var Maven = Spec{
	Kind: BuildTool,
	Name: "mvn",
	Chain: []Strategy{
		OnPath{VersionArgs: []string{"-v"}},
		EnvHome{Vars: []string{"MAVEN_HOME", "M2_HOME"}},
		WellKnownDir{},
	},
}

// Java is the JDK launcher. It reports its version on stderr.
var Java = Spec{
	Kind: JDK,
	Name: "java",
	Chain: []Strategy{
		OnPath{VersionArgs: []string{"-version"}},
		EnvHome{Vars: []string{"JAVA_HOME", "JDK_HOME"}},
		WellKnownDir{},
	},
}

// MySQLClient is the database command-line client, used as a sign that the
// database server is installed.
var MySQLClient = Spec{
	Kind: Database,
	Name: "mysql",
	Chain: []Strategy{
		OnPath{VersionArgs: []string{"--version"}},
		EnvHome{Vars: []string{"MYSQL_HOME"}},
		WellKnownDir{},
	},
}

// Node is the frontend runtime.
var Node = Spec{
	Kind: Runtime,
	Name: "node",
	Chain: []Strategy{
		OnPath{VersionArgs: []string{"-v"}},
		EnvHome{Vars: nodeHomes},
		WellKnownDir{},
	},
}

// PackageManagerSpec returns the chain for a frontend package manager.
// npm falls back to the npm-cli.js bundled with node; the others only look
// beside node, where corepack puts its shims.
func PackageManagerSpec(pm provisioner.PackageManager) Spec {
	name := string(pm)
	switch pm {
	case provisioner.NPM:
		return Spec{
			Kind: PackageManager,
			Name: name,
			Chain: []Strategy{
				OnPath{VersionArgs: []string{"-v"}},
				EnvHome{Vars: nodeHomes},
				WellKnownDir{},
				DerivedFromSibling{Sibling: Node, Script: "node_modules/npm/bin/npm-cli.js"},
			},
		}
	case provisioner.PNPM:
		return Spec{
			Kind: PackageManager,
			Name: name,
			Chain: []Strategy{
				OnPath{VersionArgs: []string{"--version"}},
				EnvHome{Vars: []string{"PNPM_HOME"}},
				WellKnownDir{},
				DerivedFromSibling{Sibling: Node},
			},
		}
	case provisioner.Bun:
		return Spec{
			Kind: PackageManager,
			Name: name,
			Chain: []Strategy{
				OnPath{VersionArgs: []string{"--version"}},
				EnvHome{Vars: []string{"BUN_INSTALL"}},
				WellKnownDir{},
			},
		}
	default:
		return Spec{
			Kind: PackageManager,
			Name: name,
			Chain: []Strategy{
				OnPath{VersionArgs: []string{"--version"}},
				WellKnownDir{},
				DerivedFromSibling{Sibling: Node},
			},
		}
	}
}

// ResolveBuildTool finds Maven.
func (l *Locator) ResolveBuildTool(ctx context.Context) (Path, bool) {
	return l.Resolve(ctx, Maven)
}

// ResolveRuntime finds node.
func (l *Locator) ResolveRuntime(ctx context.Context) (Path, bool) {
	return l.Resolve(ctx, Node)
}

// ResolvePackageManager finds the given package manager.
func (l *Locator) ResolvePackageManager(ctx context.Context, pm provisioner.PackageManager) (Path, bool) {
	return l.Resolve(ctx, PackageManagerSpec(pm))
}

// ResolveJDK finds the java launcher.
func (l *Locator) ResolveJDK(ctx context.Context) (Path, bool) {
	return l.Resolve(ctx, Java)
}
