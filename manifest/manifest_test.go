package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"cdist/cdisttype"
	"cdist/config"
	"cdist/layout"
	"cdist/log"
	"cdist/object"
	"cdist/remoteexec"
	"cdist/scriptrunner"
)

func newHostContext(t *testing.T) *layout.HostContext {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	hc, err := layout.New(cfg, "h1")
	if err != nil {
		t.Fatalf("layout.New failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(hc.ScratchDir) })
	return hc
}

func TestRunInitialSetsManifestEnv(t *testing.T) {
	hc := newHostContext(t)
	if err := os.MkdirAll(hc.ManifestDir(), 0755); err != nil {
		t.Fatalf("mkdir manifest dir: %v", err)
	}
	initPath := filepath.Join(hc.ManifestDir(), "init")
	if err := os.WriteFile(initPath, []byte("#!/bin/sh -e\n"), 0755); err != nil {
		t.Fatalf("writing init manifest: %v", err)
	}

	fake := remoteexec.NewFake()
	store := object.New(afero.NewOsFs(), hc.ObjectBaseDir())
	engine := New(scriptrunner.New(fake, log.NoOpLogger{}), hc, store)

	if err := engine.RunInitial(context.Background(), initPath); err != nil {
		t.Fatalf("RunInitial failed: %v", err)
	}

	if len(fake.Calls) != 1 {
		t.Fatalf("expected one script invocation, got %d", len(fake.Calls))
	}
	env := fake.Calls[0].Env
	if !containsPrefix(env, "__manifest="+hc.ManifestDir()) {
		t.Errorf("env missing __manifest: %v", env)
	}
	if !containsPrefix(env, "__cdist_manifest="+initPath) {
		t.Errorf("env missing __cdist_manifest: %v", env)
	}
}

func TestRunTypeSkipsWhenNoManifestScript(t *testing.T) {
	hc := newHostContext(t)
	fake := remoteexec.NewFake()
	store := object.New(afero.NewOsFs(), hc.ObjectBaseDir())
	engine := New(scriptrunner.New(fake, log.NoOpLogger{}), hc, store)

	typ := &cdisttype.Type{Name: "__file"}
	if err := engine.RunType(context.Background(), typ, object.ID{Type: "__file", ID: "a"}); err != nil {
		t.Fatalf("RunType failed: %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("expected no invocation, got %d", len(fake.Calls))
	}
}

func TestRunTypeSetsObjectEnv(t *testing.T) {
	hc := newHostContext(t)
	manifestPath := filepath.Join(t.TempDir(), "manifest")
	if err := os.WriteFile(manifestPath, []byte("#!/bin/sh -e\n"), 0755); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	fake := remoteexec.NewFake()
	store := object.New(afero.NewOsFs(), hc.ObjectBaseDir())
	engine := New(scriptrunner.New(fake, log.NoOpLogger{}), hc, store)

	typeDir := filepath.Join(hc.TypeBaseDir(), "__file")
	typ := &cdisttype.Type{Name: "__file", Dir: typeDir, HasManifest: true, ManifestPath: manifestPath}
	obj := object.ID{Type: "__file", ID: "etc/motd"}

	if err := engine.RunType(context.Background(), typ, obj); err != nil {
		t.Fatalf("RunType failed: %v", err)
	}

	_, wantObjectDir := store.Paths(obj)
	env := fake.Calls[0].Env
	if !containsPrefix(env, "__object_fq="+obj.FQ()) {
		t.Errorf("env missing __object_fq: %v", env)
	}
	if !containsPrefix(env, "__object="+wantObjectDir) {
		t.Errorf("env missing __object: %v", env)
	}
	if !containsPrefix(env, "__type="+typeDir) {
		t.Errorf("env missing __type: %v", env)
	}
}

func containsPrefix(env []string, prefix string) bool {
	for _, e := range env {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
