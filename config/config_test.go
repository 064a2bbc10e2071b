package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cdist")
	cfg, err := Load(base)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseDir != base {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, base)
	}
	if cfg.RemoteUser != "root" {
		t.Errorf("RemoteUser = %q, want root", cfg.RemoteUser)
	}
	if cfg.SSHBinary != "ssh" || cfg.SCPBinary != "scp" {
		t.Errorf("unexpected ssh/scp binaries: %q %q", cfg.SSHBinary, cfg.SCPBinary)
	}
	if cfg.MaxConvergencePasses != defaultMaxConvergencePasses {
		t.Errorf("MaxConvergencePasses = %d, want %d", cfg.MaxConvergencePasses, defaultMaxConvergencePasses)
	}
	if cfg.InitialManifest != filepath.Join(base, "conf", "manifest", "init") {
		t.Errorf("InitialManifest = %q", cfg.InitialManifest)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/srv/cdist"}

	if got := cfg.ConfDir(); got != "/srv/cdist/conf" {
		t.Errorf("ConfDir = %q", got)
	}
	if got := cfg.TypeBaseDir(); got != "/srv/cdist/conf/type" {
		t.Errorf("TypeBaseDir = %q", got)
	}
	if got := cfg.ManifestDir(); got != "/srv/cdist/conf/manifest" {
		t.Errorf("ManifestDir = %q", got)
	}
	if got := cfg.GlobalExplorerDir(); got != "/srv/cdist/conf/explorer" {
		t.Errorf("GlobalExplorerDir = %q", got)
	}
	if got := cfg.CacheDirFor("h1"); got != "/srv/cdist/cache/h1" {
		t.Errorf("CacheDirFor = %q", got)
	}
	if got := cfg.RunLedgerPath(); got != "/srv/cdist/cache/runs.db" {
		t.Errorf("RunLedgerPath = %q", got)
	}
}

func TestLoadAppliesINIOverrides(t *testing.T) {
	base := t.TempDir()
	iniContent := `[cdist]
remote_user = deploy
ssh_options = -o StrictHostKeyChecking=no -o BatchMode=yes
max_convergence_passes = 8
parallel = true
metrics_addr = :9120
`
	if err := os.WriteFile(filepath.Join(base, "cdist.ini"), []byte(iniContent), 0644); err != nil {
		t.Fatalf("writing cdist.ini: %v", err)
	}

	cfg, err := Load(base)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RemoteUser != "deploy" {
		t.Errorf("RemoteUser = %q, want deploy", cfg.RemoteUser)
	}
	if len(cfg.SSHOptions) != 4 {
		t.Errorf("SSHOptions = %v, want 4 fields", cfg.SSHOptions)
	}
	if cfg.MaxConvergencePasses != 8 {
		t.Errorf("MaxConvergencePasses = %d, want 8", cfg.MaxConvergencePasses)
	}
	if !cfg.Parallel {
		t.Error("Parallel = false, want true")
	}
	if cfg.MetricsAddr != ":9120" {
		t.Errorf("MetricsAddr = %q, want :9120", cfg.MetricsAddr)
	}
}

func TestLoadRejectsMalformedINI(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "cdist.ini"), []byte("[unterminated section\nkey=value\n"), 0644); err != nil {
		t.Fatalf("writing cdist.ini: %v", err)
	}

	if _, err := Load(base); err == nil {
		t.Error("Load should fail on malformed cdist.ini")
	}
}

func TestHostInfoNeverFails(t *testing.T) {
	osname, _, arch, ncpu := HostInfo()
	if ncpu < 1 {
		t.Errorf("ncpu = %d, want >= 1", ncpu)
	}
	_ = osname
	_ = arch
}
