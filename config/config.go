// Package config loads cdist's configuration: where the configuration tree
// lives, how to reach the target over SSH, and the few behavioral knobs the
// driver exposes (convergence bound, metrics address).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"
)

// defaultMaxConvergencePasses bounds the convergence loop (§4.8 / design
// note "convergence vs. unbounded growth"). A manifest that keeps creating
// new objects forever fails loudly instead of hanging.
const defaultMaxConvergencePasses = 64

// Config holds all cdist configuration.
type Config struct {
	// BaseDir is the root of the configuration tree: BaseDir/conf holds
	// types/manifest/explorer, BaseDir/cache holds promoted per-host runs.
	BaseDir string

	// InitialManifest is the manifest run first for every host. Defaults to
	// BaseDir/conf/manifest/init.
	InitialManifest string

	// GroupsFile is an optional YAML host-group file (§4.11). Empty disables
	// group expansion; bare hostnames are then used as-is.
	GroupsFile string

	// RemoteUser is the SSH user used to reach every target host, unless a
	// host string embeds its own user@host.
	RemoteUser string

	// SSHBinary and SCPBinary name the executables shelled out to by the SSH
	// remote executor. Override for wrapper scripts (ProxyCommand, bastions).
	SSHBinary string
	SCPBinary string

	// SSHOptions are extra arguments spliced into every ssh/scp invocation
	// (e.g. "-o StrictHostKeyChecking=no").
	SSHOptions []string

	// MaxConvergencePasses bounds the convergence loop (§4.8).
	MaxConvergencePasses int

	// Parallel runs the multi-host orchestrator's hosts concurrently when
	// true (overridable per invocation by -p/-s).
	Parallel bool

	// MetricsAddr, if non-empty, serves Prometheus metrics at this address
	// for the duration of a `config` run.
	MetricsAddr string

	// Debug raises the logger to debug level.
	Debug bool
}

// ConfDir, TypeBaseDir, ManifestDir and GlobalExplorerDir are derived from
// BaseDir and never stored independently, so the tree always stays
// internally consistent when BaseDir is overridden by a flag.

// ConfDir returns BaseDir/conf.
func (c *Config) ConfDir() string { return filepath.Join(c.BaseDir, "conf") }

// TypeBaseDir returns BaseDir/conf/type, the root under which each `__name`
// type directory lives.
func (c *Config) TypeBaseDir() string { return filepath.Join(c.ConfDir(), "type") }

// ManifestDir returns BaseDir/conf/manifest, the directory initial manifests
// are conventionally stored in (exposed to scripts as __manifest).
func (c *Config) ManifestDir() string { return filepath.Join(c.ConfDir(), "manifest") }

// GlobalExplorerDir returns BaseDir/conf/explorer.
func (c *Config) GlobalExplorerDir() string { return filepath.Join(c.ConfDir(), "explorer") }

// CacheBaseDir returns BaseDir/cache, the root of all promoted per-host
// scratch trees and the run ledger.
func (c *Config) CacheBaseDir() string { return filepath.Join(c.BaseDir, "cache") }

// CacheDirFor returns the promoted cache directory for a specific host.
func (c *Config) CacheDirFor(host string) string {
	return filepath.Join(c.CacheBaseDir(), host)
}

// RunLedgerPath returns the path to the bbolt run ledger database (§4.10).
func (c *Config) RunLedgerPath() string {
	return filepath.Join(c.CacheBaseDir(), "runs.db")
}

// Load builds a Config for baseDir, applying defaults and then an optional
// cdist.ini override file at baseDir/cdist.ini (parsed with gopkg.in/ini.v1).
//
// baseDir may be empty, in which case /etc/cdist is used if present,
// otherwise the current user's home directory under ".cdist".
func Load(baseDir string) (*Config, error) {
	cfg := &Config{
		RemoteUser:           "root",
		SSHBinary:            "ssh",
		SCPBinary:            "scp",
		MaxConvergencePasses: defaultMaxConvergencePasses,
	}

	if baseDir == "" {
		baseDir = defaultBaseDir()
	}
	cfg.BaseDir = baseDir
	cfg.InitialManifest = filepath.Join(cfg.ManifestDir(), "init")

	iniPath := filepath.Join(baseDir, "cdist.ini")
	if _, err := os.Stat(iniPath); err == nil {
		if err := cfg.applyINI(iniPath); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", iniPath, err)
		}
	}

	return cfg, nil
}

func defaultBaseDir() string {
	if _, err := os.Stat("/etc/cdist"); err == nil {
		return "/etc/cdist"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cdist")
	}
	return "/etc/cdist"
}

// applyINI overlays values from an optional cdist.ini file onto cfg. Only
// the "cdist" section is consulted; unknown keys are ignored so the file can
// carry forward-compatible settings.
func (c *Config) applyINI(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return err
	}

	sec := f.Section("cdist")

	if v := sec.Key("remote_user").String(); v != "" {
		c.RemoteUser = v
	}
	if v := sec.Key("ssh_binary").String(); v != "" {
		c.SSHBinary = v
	}
	if v := sec.Key("scp_binary").String(); v != "" {
		c.SCPBinary = v
	}
	if v := sec.Key("ssh_options").String(); v != "" {
		c.SSHOptions = strings.Fields(v)
	}
	if n, err := sec.Key("max_convergence_passes").Int(); err == nil && n > 0 {
		c.MaxConvergencePasses = n
	}
	if sec.HasKey("parallel") {
		c.Parallel = sec.Key("parallel").MustBool(c.Parallel)
	}
	if v := sec.Key("metrics_addr").String(); v != "" {
		c.MetricsAddr = v
	}

	return nil
}

// HostInfo reports the local operating system name, release, machine
// architecture, and CPU count. It never fails: on platforms or in containers
// where uname is unavailable, the string fields are left empty.
func HostInfo() (osname, release, arch string, ncpu int) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		osname = trimNulls(uts.Sysname[:])
		release = trimNulls(uts.Release[:])
		arch = trimNulls(uts.Machine[:])
	}
	ncpu = runtime.NumCPU()
	return
}

func trimNulls(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s
}
