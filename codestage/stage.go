// Package codestage computes the dependency-ordered build plan and runs
// gencode then code for each object in that order.
package codestage

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"cdist/cdisttype"
	"cdist/layout"
	"cdist/object"
	"cdist/remoteexec"
	"cdist/scriptrunner"
)

// header is the fixed interpreter line every generated code artifact
// starts with.
const header = "#!/bin/sh -e\n"

// Stage runs gencode and code for every object in a host context, in
// dependency order.
type Stage struct {
	Runner   *scriptrunner.Runner
	Executor remoteexec.Executor
	Store    *object.Store
	Host     *layout.HostContext
}

func New(runner *scriptrunner.Runner, exec remoteexec.Executor, store *object.Store, host *layout.HostContext) *Stage {
	return &Stage{Runner: runner, Executor: exec, Store: store, Host: host}
}

// Run computes the build order over objects and, for each in turn, performs
// gencode then code.
func (s *Stage) Run(ctx context.Context, objects []object.ID, loadType func(string) (*cdisttype.Type, error)) error {
	order, err := BuildOrder(objects, s.Store.Require)
	if err != nil {
		return fmt.Errorf("codestage: %w", err)
	}

	for _, obj := range order {
		typ, err := loadType(obj.Type)
		if err != nil {
			return fmt.Errorf("codestage: loading type %s: %w", obj.Type, err)
		}
		if err := s.gencode(ctx, typ, obj); err != nil {
			return err
		}
		if err := s.runCode(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) objectEnv(typ *cdisttype.Type, obj object.ID) []string {
	_, cdistDir := s.Store.Paths(obj)
	return []string{
		"PATH=" + s.Host.BinDir() + ":" + os.Getenv("PATH"),
		"__target_host=" + s.Host.TargetHost,
		"__global=" + s.Host.OutDir(),
		"__cdist_type_base_path=" + s.Host.TypeBaseDir(),
		"__object=" + cdistDir,
		"__object_id=" + obj.ID,
		"__object_fq=" + obj.FQ(),
		"__type=" + typ.Dir,
	}
}

func (s *Stage) gencode(ctx context.Context, typ *cdisttype.Type, obj object.ID) error {
	_, cdistDir := s.Store.Paths(obj)

	if typ.HasGencodeLocal {
		if err := s.gencodeOne(ctx, typ, typ.GencodeLocalPath, cdistDir+"/code-local", obj); err != nil {
			return err
		}
	}
	if typ.HasGencodeRemote {
		if err := s.gencodeOne(ctx, typ, typ.GencodeRemotePath, cdistDir+"/code-remote", obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) gencodeOne(ctx context.Context, typ *cdisttype.Type, scriptPath, outPath string, obj object.ID) error {
	result, err := s.Runner.Run(ctx, scriptPath, nil, s.objectEnv(typ, obj), false)
	if err != nil {
		return fmt.Errorf("codestage: gencode for %s: %w", obj.FQ(), err)
	}

	if len(result.Stdout) == 0 {
		os.Remove(outPath)
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	buf.Write(result.Stdout)

	if err := os.WriteFile(outPath, buf.Bytes(), 0700); err != nil {
		return fmt.Errorf("codestage: writing code artifact %s: %w", outPath, err)
	}
	if err := os.Chmod(outPath, 0700); err != nil {
		return fmt.Errorf("codestage: chmod code artifact %s: %w", outPath, err)
	}
	return s.Store.MarkChanged(obj)
}

func (s *Stage) runCode(ctx context.Context, obj object.ID) error {
	_, cdistDir := s.Store.Paths(obj)
	localCode := cdistDir + "/code-local"
	remoteCode := cdistDir + "/code-remote"

	if _, err := os.Stat(localCode); err == nil {
		if err := s.Executor.Run(ctx, []string{localCode}, nil, nil, nil, nil, false); err != nil {
			return fmt.Errorf("codestage: running code-local for %s: %w", obj.FQ(), err)
		}
	}

	if _, err := os.Stat(remoteCode); err == nil {
		remoteObjectDir := s.Host.RemoteObjectDir(obj.Type, obj.ID)
		if err := s.Executor.Mkdir(ctx, remoteObjectDir, true); err != nil {
			return fmt.Errorf("codestage: preparing remote object dir for %s: %w", obj.FQ(), err)
		}
		remoteCodePath := remoteObjectDir + "/code-remote"
		if err := s.Executor.Copy(ctx, remoteCode, remoteCodePath); err != nil {
			return fmt.Errorf("codestage: transferring code-remote for %s: %w", obj.FQ(), err)
		}
		if err := s.Executor.Run(ctx, []string{remoteCodePath}, nil, nil, nil, nil, true); err != nil {
			return fmt.Errorf("codestage: running code-remote for %s: %w", obj.FQ(), err)
		}
	}

	return nil
}
