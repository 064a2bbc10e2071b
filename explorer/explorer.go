// Package explorer runs global and type explorers against a host context,
// capturing their remote output into the local object tree.
package explorer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cdist/cdisttype"
	"cdist/layout"
	"cdist/object"
	"cdist/remoteexec"
)

// Engine runs explorers for a single host context.
type Engine struct {
	Executor remoteexec.Executor
	Host     *layout.HostContext
	Store    *object.Store
}

func New(exec remoteexec.Executor, host *layout.HostContext, store *object.Store) *Engine {
	return &Engine{Executor: exec, Host: host, Store: store}
}

func (e *Engine) env() []string {
	return []string{
		"__target_host=" + e.Host.TargetHost,
		"__global=" + e.Host.OutDir(),
		"__cdist_type_base_path=" + e.Host.TypeBaseDir(),
	}
}

// RunGlobal runs every global explorer once, capturing each one's stdout
// into out_dir/explorer/<name>. Fails if no global explorers are
// configured.
func (e *Engine) RunGlobal(ctx context.Context) error {
	names, err := explorerNames(e.Host.GlobalExplorerDir())
	if err != nil {
		return fmt.Errorf("explorer: reading global explorer dir: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("explorer: no global explorers found in %s", e.Host.GlobalExplorerDir())
	}

	remoteDir := e.Host.RemoteGlobalExplorerDir()
	if err := e.Executor.RemoveTree(ctx, remoteDir, true); err != nil {
		return fmt.Errorf("explorer: clearing remote global explorer dir: %w", err)
	}
	if err := e.Executor.Copy(ctx, e.Host.GlobalExplorerDir(), remoteDir); err != nil {
		return fmt.Errorf("explorer: transferring global explorers: %w", err)
	}

	env := append(e.env(), "__explorer="+remoteDir)
	for _, name := range names {
		var stdout bytes.Buffer
		argv := []string{filepath.Join(remoteDir, name)}
		if err := e.Executor.Run(ctx, argv, env, nil, &stdout, nil, true); err != nil {
			return fmt.Errorf("explorer: global explorer %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(e.Host.GlobalExplorerOutDir(), name), stdout.Bytes(), 0644); err != nil {
			return fmt.Errorf("explorer: writing global explorer output %s: %w", name, err)
		}
	}
	return nil
}

// RunType runs typ's explorers for obj, transferring typ's explorer
// directory to the remote side only the first time this type is seen in
// this host context's run.
func (e *Engine) RunType(ctx context.Context, typ *cdisttype.Type, obj object.ID) error {
	if !typ.HasExplorer {
		return nil
	}

	remoteTypeExplorerDir := e.Host.RemoteTypeExplorerDir(typ.Name)
	if e.Host.MarkTypeExplorerTransferred(typ.Name) {
		if err := e.Executor.Copy(ctx, typ.ExplorerDir, remoteTypeExplorerDir); err != nil {
			return fmt.Errorf("explorer: transferring type explorers for %s: %w", typ.Name, err)
		}
	}

	_, cdistDir := e.Store.Paths(obj)
	remoteObjectDir := e.Host.RemoteObjectDir(obj.Type, obj.ID)
	if err := e.Executor.Copy(ctx, filepath.Join(cdistDir, "parameter"), filepath.Join(remoteObjectDir, "parameter")); err != nil {
		return fmt.Errorf("explorer: transferring parameters for %s: %w", obj.FQ(), err)
	}

	names, err := typ.ExplorerNames()
	if err != nil {
		return fmt.Errorf("explorer: listing explorers for %s: %w", typ.Name, err)
	}

	env := append(e.env(),
		"__explorer="+e.Host.RemoteGlobalExplorerDir(),
		"__type_explorer="+remoteTypeExplorerDir,
		"__object="+remoteObjectDir,
		"__object_id="+obj.ID,
		"__object_fq="+obj.FQ(),
	)

	for _, name := range names {
		var stdout bytes.Buffer
		argv := []string{filepath.Join(remoteTypeExplorerDir, name)}
		if err := e.Executor.Run(ctx, argv, env, nil, &stdout, nil, true); err != nil {
			return fmt.Errorf("explorer: type explorer %s/%s: %w", typ.Name, name, err)
		}
		if err := e.Store.WriteExplorer(obj, name, stdout.Bytes()); err != nil {
			return fmt.Errorf("explorer: recording %s/%s output: %w", typ.Name, name, err)
		}
	}
	return nil
}

func explorerNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
