// Package manifest runs the initial manifest and per-type manifests, the
// user shell scripts that declare configuration objects via the type
// emulator.
package manifest

import (
	"context"
	"fmt"
	"os"

	"cdist/cdisttype"
	"cdist/layout"
	"cdist/object"
	"cdist/scriptrunner"
)

// Engine runs manifests for a single host context.
type Engine struct {
	Runner *scriptrunner.Runner
	Host   *layout.HostContext
	Store  *object.Store
}

func New(runner *scriptrunner.Runner, host *layout.HostContext, store *object.Store) *Engine {
	return &Engine{Runner: runner, Host: host, Store: store}
}

// GlobalEnv is the set of engine-global variables every manifest run shares,
// computed once per host context (§4.3).
func (e *Engine) GlobalEnv() []string {
	return []string{
		"PATH=" + e.Host.BinDir() + ":" + processPath(),
		"__target_host=" + e.Host.TargetHost,
		"__global=" + e.Host.OutDir(),
		"__cdist_type_base_path=" + e.Host.TypeBaseDir(),
	}
}

// RunInitial runs manifestPath (typically the configured initial manifest)
// with __manifest pointing at the manifest directory.
func (e *Engine) RunInitial(ctx context.Context, manifestPath string) error {
	env := append(e.GlobalEnv(), "__manifest="+e.Host.ManifestDir(), "__cdist_manifest="+manifestPath)
	_, err := e.Runner.Run(ctx, manifestPath, nil, env, false)
	if err != nil {
		return fmt.Errorf("manifest: initial manifest: %w", err)
	}
	return nil
}

// RunType runs typ's manifest script (if it has one) for obj, with the
// per-object environment documented in §6.
func (e *Engine) RunType(ctx context.Context, typ *cdisttype.Type, obj object.ID) error {
	if !typ.HasManifest {
		return nil
	}
	_, cdistDir := e.Store.Paths(obj)
	env := append(e.GlobalEnv(),
		"__object="+cdistDir,
		"__object_id="+obj.ID,
		"__object_fq="+obj.FQ(),
		"__type="+typ.Dir,
		"__cdist_manifest="+typ.ManifestPath,
	)
	_, err := e.Runner.Run(ctx, typ.ManifestPath, nil, env, false)
	if err != nil {
		return fmt.Errorf("manifest: type manifest for %s: %w", obj.FQ(), err)
	}
	return nil
}

func processPath() string {
	return os.Getenv("PATH")
}
