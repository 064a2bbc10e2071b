// Package layout computes every path a cdist run touches, mints the
// per-host scratch tree, and promotes it to the cache directory on success.
package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"cdist/config"
	"cdist/util"
)

// RemoteBaseDir is the fixed root of the configuration tree on every target
// host.
const RemoteBaseDir = "/var/lib/cdist"

// HostContext owns every path for a single host's run: the scratch tree
// being built up locally, the promoted cache from the previous run, and the
// fixed remote layout on the target.
type HostContext struct {
	Config     *config.Config
	TargetHost string
	RemoteUser string

	// ScratchDir is a fresh temporary directory for this run.
	ScratchDir string

	// CacheDir is where ScratchDir is promoted to on success.
	CacheDir string

	// transferredTypes memoizes which types' explorer directories have
	// already been copied to the remote side this run, so a type used by
	// many objects is transferred at most once. Scoped to this host
	// context, never shared across hosts.
	transferredTypes map[string]bool
}

// New mints a scratch directory for targetHost and creates its eager
// subtree (out/, out/explorer/, out/bin/).
func New(cfg *config.Config, targetHost string) (*HostContext, error) {
	scratch, err := os.MkdirTemp("", "cdist-"+sanitize(targetHost)+"-")
	if err != nil {
		return nil, fmt.Errorf("layout: minting scratch dir: %w", err)
	}

	hc := &HostContext{
		Config:           cfg,
		TargetHost:       targetHost,
		RemoteUser:       cfg.RemoteUser,
		ScratchDir:       scratch,
		CacheDir:         cfg.CacheDirFor(targetHost),
		transferredTypes: make(map[string]bool),
	}

	for _, dir := range []string{hc.OutDir(), hc.GlobalExplorerOutDir(), hc.BinDir(), hc.ObjectBaseDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("layout: creating %s: %w", dir, err)
		}
	}

	return hc, nil
}

func sanitize(host string) string {
	out := make([]rune, 0, len(host))
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Local paths, rooted at ScratchDir or the configuration tree.

func (hc *HostContext) OutDir() string              { return filepath.Join(hc.ScratchDir, "out") }
func (hc *HostContext) GlobalExplorerOutDir() string { return filepath.Join(hc.OutDir(), "explorer") }
func (hc *HostContext) BinDir() string               { return filepath.Join(hc.OutDir(), "bin") }
func (hc *HostContext) ObjectBaseDir() string        { return filepath.Join(hc.OutDir(), "object") }

func (hc *HostContext) TypeBaseDir() string         { return hc.Config.TypeBaseDir() }
func (hc *HostContext) GlobalExplorerDir() string   { return hc.Config.GlobalExplorerDir() }
func (hc *HostContext) ManifestDir() string         { return hc.Config.ManifestDir() }

// Remote paths, rooted at RemoteBaseDir.

func (hc *HostContext) RemoteConfTypeDir() string {
	return filepath.Join(RemoteBaseDir, "conf", "type")
}

func (hc *HostContext) RemoteTypeExplorerDir(typeName string) string {
	return filepath.Join(hc.RemoteConfTypeDir(), typeName, "explorer")
}

func (hc *HostContext) RemoteGlobalExplorerDir() string {
	return filepath.Join(RemoteBaseDir, "conf", "explorer")
}

// RemoteObjectDir returns the remote object's metadata directory, including
// the .cdist segment every object directory (local and remote) carries
// around its parameter/code-remote files.
func (hc *HostContext) RemoteObjectDir(objType, objectID string) string {
	return filepath.Join(RemoteBaseDir, "object", objType, objectID, ".cdist")
}

// PopulateBinDir creates a symlink named after each type in BinDir,
// pointing at the currently running binary. A manifest invoking "__file"
// resolves it on PATH to this symlink, which re-execs into emulator mode
// because the binary dispatches on argv[0]'s basename.
func (hc *HostContext) PopulateBinDir(typeNames []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("layout: resolving own executable: %w", err)
	}

	for _, name := range typeNames {
		link := filepath.Join(hc.BinDir(), name)
		os.Remove(link)
		if err := os.Symlink(self, link); err != nil {
			return fmt.Errorf("layout: symlinking %s: %w", name, err)
		}
	}
	return nil
}

// Promote replaces CacheDir with ScratchDir, atomically at the directory
// level: the prior cache is removed, then the scratch tree is moved into
// place. Only called after a full successful run; a failed run leaves
// ScratchDir in place for inspection and never touches CacheDir.
func (hc *HostContext) Promote() error {
	if err := os.MkdirAll(filepath.Dir(hc.CacheDir), 0755); err != nil {
		return fmt.Errorf("layout: preparing cache parent: %w", err)
	}
	if err := util.RemoveAll(hc.CacheDir); err != nil {
		return fmt.Errorf("layout: removing prior cache: %w", err)
	}
	if err := os.Rename(hc.ScratchDir, hc.CacheDir); err != nil {
		return fmt.Errorf("layout: promoting scratch to cache: %w", err)
	}
	return nil
}

// MarkTypeExplorerTransferred records that typeName's explorer directory has
// been copied to the remote side, returning true the first time it is
// called for a given type and false on every subsequent call.
func (hc *HostContext) MarkTypeExplorerTransferred(typeName string) (first bool) {
	if hc.transferredTypes[typeName] {
		return false
	}
	hc.transferredTypes[typeName] = true
	return true
}
