package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// CredentialProvider resolves a bearer token for a Git host. It is stateless
// beyond the directories it reads from; callers may construct one per
// operation.
type CredentialProvider struct {
	// configDir overrides the netrc search directory; used by tests.
	configDir string
}

// NewCredentialProvider builds a provider rooted at the user's config
// directory (XDG_CONFIG_HOME, falling back to HOME).
func NewCredentialProvider() *CredentialProvider {
	return &CredentialProvider{configDir: userConfigDir()}
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}

// envVarForHost returns the environment variable name consulted for a host,
// e.g. "github" -> "GITHUB_TOKEN".
func envVarForHost(host string) string {
	return strings.ToUpper(host) + "_TOKEN"
}

// Token returns a token for host, or "" if none is configured (anonymous
// access). Sources are consulted in order: process environment, then a
// netrc-style file under the config directory.
func (c *CredentialProvider) Token(host string) string {
	if tok := os.Getenv(envVarForHost(host)); tok != "" {
		return tok
	}
	if tok := c.tokenFromNetrc(host); tok != "" {
		return tok
	}
	return ""
}

// tokenFromNetrc reads ~/.config/dlang/netrc (or $XDG_CONFIG_HOME/dlang/netrc)
// for a "machine <host> password <token>" triple, the conventional netrc
// machine/login/password grammar restricted to the fields we use.
func (c *CredentialProvider) tokenFromNetrc(host string) string {
	if c.configDir == "" {
		return ""
	}
	path := filepath.Join(c.configDir, "dlang", "netrc")
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var currentMachine string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i := 0; i+1 < len(fields); i += 2 {
			switch fields[i] {
			case "machine":
				currentMachine = fields[i+1]
			case "password":
				if currentMachine == hostDomain(host) {
					return fields[i+1]
				}
			}
		}
	}
	return ""
}

// hostDomain maps a short host name to the domain netrc entries name it by.
func hostDomain(host string) string {
	switch host {
	case "github":
		return "github.com"
	case "gitlab":
		return "gitlab.com"
	case "gitea":
		return "gitea"
	default:
		return host
	}
}
