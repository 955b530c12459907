package main

import (
	"fmt"
	"os"
)

var Version = "1.0.0"

const (
	exitSuccess       = 0
	exitFailed        = 1
	exitManifestMiss  = 2
	exitNetworkFailed = 10
	exitUnknownCmd    = 127
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		os.Exit(exitSuccess)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var code int
	switch cmd {
	case "-h", "--help", "help":
		showHelp()
		code = exitSuccess
	case "-v", "--version", "version":
		fmt.Printf("dlang-deps v%s\n", Version)
		code = exitSuccess
	case "init":
		code = cmdInit(args)
	case "install":
		code = cmdInstall(args)
	case "add":
		code = cmdAdd(args)
	case "remove":
		code = cmdRemove(args)
	case "update":
		code = cmdUpdate(args)
	case "upgrade":
		code = cmdUpgrade(args)
	case "outdated":
		code = cmdOutdated(args)
	case "cache-clear":
		code = cmdCacheClear(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprintln(os.Stderr, "Run 'dlang-deps --help' for usage.")
		code = exitUnknownCmd
	}

	os.Exit(code)
}

func showHelp() {
	fmt.Printf(`dlang-deps v%s - dependency manager for DomainLang workspaces

Usage: dlang-deps <command> [options]

Commands:
  init [directory]     Scaffold a new workspace manifest
  install              Reconcile model.lock against model.yaml
  add <owner/repo[@ref]>  Add a dependency and install it
  remove <name>        Remove a dependency and its cache entry
  update               Refresh branch dependencies to their latest commit
  upgrade [pkg] [ver]  List or apply tag upgrades
  outdated             List available tag upgrades
  cache-clear          Wipe the local package cache

Common flags:
  --json            Emit machine-readable JSON instead of text
  --quiet, -q        Suppress progress output
  --no-color         Disable colored output
  --frozen-lock      (install) fail instead of updating the lock

Options:
  -h, --help         Show this help message
  -v, --version      Show version number

Environment:
  NO_COLOR           Disables color output
  <HOST>_TOKEN       Credentials for github/gitlab/gitea (e.g. GITHUB_TOKEN)
  XDG_CONFIG_HOME    Overrides where netrc credentials are read from

Examples:
  dlang-deps install
  dlang-deps add acme/core@v1.2.3
  dlang-deps remove acme/core
  dlang-deps update
  dlang-deps upgrade acme/core
  dlang-deps outdated
  dlang-deps cache-clear
`, Version)
}
