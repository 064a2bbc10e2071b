package emulator

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"cdist/object"
)

func TestRunCreatesObjectWithParameters(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/conf/manifest/init"}
	lists := ParamLists{Optional: []string{"mode"}}

	err := Run(fs, []string{"__file", "--mode", "0644", "/etc/motd"}, env, lists)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := object.New(fs, env.ObjectBaseDir)
	id := object.ID{Type: "__file", ID: "etc/motd"}
	ok, err := store.Exists(id)
	if err != nil || !ok {
		t.Fatalf("object not created: %v, %v", ok, err)
	}
	value, ok, err := store.Parameter(id, "mode")
	if err != nil || !ok || value != "0644" {
		t.Fatalf("Parameter = %q, %v, %v", value, ok, err)
	}
}

func TestRunMissingRequiredParameterFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/m"}
	lists := ParamLists{Required: []string{"destination"}}

	err := Run(fs, []string{"__file", "/etc/motd"}, env, lists)
	if err == nil {
		t.Fatal("expected error for missing required parameter")
	}
}

func TestRunSingletonForcesObjectID(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/m"}
	lists := ParamLists{Singleton: true}

	if err := Run(fs, []string{"__hostname"}, env, lists); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	store := object.New(fs, env.ObjectBaseDir)
	ok, err := store.Exists(object.ID{Type: "__hostname", ID: "singleton"})
	if err != nil || !ok {
		t.Fatalf("singleton object not created: %v, %v", ok, err)
	}
}

func TestRunStripsLeadingSlashFromObjectID(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/m"}

	if err := Run(fs, []string{"__file", "/a/b"}, env, ParamLists{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	store := object.New(fs, env.ObjectBaseDir)
	ok, err := store.Exists(object.ID{Type: "__file", ID: "a/b"})
	if err != nil || !ok {
		t.Fatalf("expected normalized object id a/b: %v, %v", ok, err)
	}
}

func TestRunAppendsRequireFromEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/m", Require: "__file/a __file/b"}

	if err := Run(fs, []string{"__file", "c"}, env, ParamLists{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	store := object.New(fs, env.ObjectBaseDir)
	deps, err := store.Require(object.ID{Type: "__file", ID: "c"})
	if err != nil || len(deps) != 2 {
		t.Fatalf("Require = %v, %v", deps, err)
	}
}

func TestRunParameterConflictPropagates(t *testing.T) {
	fs := afero.NewMemMapFs()
	env := Env{ObjectBaseDir: "/scratch/out/object", CurrentManifest: "/m1"}
	lists := ParamLists{Optional: []string{"mode"}}

	if err := Run(fs, []string{"__file", "--mode", "0644", "/etc/motd"}, env, lists); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	env.CurrentManifest = "/m2"
	err := Run(fs, []string{"__file", "--mode", "0600", "/etc/motd"}, env, lists)
	if !errors.Is(err, object.ErrParameterDiffers) {
		t.Fatalf("expected ErrParameterDiffers, got %v", err)
	}
}
