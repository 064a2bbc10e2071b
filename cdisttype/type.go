// Package cdisttype reads type directories: the user-authored schema of
// parameters, explorers, and scripts a type declares under
// conf/type/<name>/.
package cdisttype

import (
	"os"
	"path/filepath"
	"strings"
)

// Type describes one type directory. All fields are derived by reading the
// filesystem once at construction; types are never mutated at runtime.
type Type struct {
	Name      string
	Dir       string
	Singleton bool
	Required  []string
	Optional  []string

	HasExplorer       bool
	ExplorerDir       string
	HasManifest       bool
	ManifestPath      string
	HasGencodeLocal   bool
	GencodeLocalPath  string
	HasGencodeRemote  bool
	GencodeRemotePath string
}

// Load reads the type directory at dir (named typeBaseDir/<name>).
func Load(typeBaseDir, name string) (*Type, error) {
	dir := filepath.Join(typeBaseDir, name)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "load type", Path: dir, Err: os.ErrInvalid}
	}

	t := &Type{Name: name, Dir: dir}

	if _, err := os.Stat(filepath.Join(dir, "singleton")); err == nil {
		t.Singleton = true
	}

	t.Required, err = readParamList(filepath.Join(dir, "parameter", "required"))
	if err != nil {
		return nil, err
	}
	t.Optional, err = readParamList(filepath.Join(dir, "parameter", "optional"))
	if err != nil {
		return nil, err
	}

	explorerDir := filepath.Join(dir, "explorer")
	if info, err := os.Stat(explorerDir); err == nil && info.IsDir() {
		t.HasExplorer = true
		t.ExplorerDir = explorerDir
	}

	manifestPath := filepath.Join(dir, "manifest")
	if info, err := os.Stat(manifestPath); err == nil && !info.IsDir() {
		t.HasManifest = true
		t.ManifestPath = manifestPath
	}

	gencodeLocal := filepath.Join(dir, "gencode-local")
	if info, err := os.Stat(gencodeLocal); err == nil && !info.IsDir() {
		t.HasGencodeLocal = true
		t.GencodeLocalPath = gencodeLocal
	}

	gencodeRemote := filepath.Join(dir, "gencode-remote")
	if info, err := os.Stat(gencodeRemote); err == nil && !info.IsDir() {
		t.HasGencodeRemote = true
		t.GencodeRemotePath = gencodeRemote
	}

	return t, nil
}

// ExplorerNames lists the names of the type's explorer scripts, sorted.
func (t *Type) ExplorerNames() ([]string, error) {
	if !t.HasExplorer {
		return nil, nil
	}
	entries, err := os.ReadDir(t.ExplorerDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readParamList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
