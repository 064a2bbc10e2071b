// Package object implements the on-disk object store: the directory tree of
// configuration objects a manifest run populates via the type emulator, and
// the code stage later reads to generate and run code.
package object

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// cdistMarker is the child name that distinguishes an object directory from
// an ordinary path component while walking the object tree.
const cdistMarker = ".cdist"

// Sentinel errors, checkable with errors.Is.
var (
	ErrNewParameter       = errors.New("new parameter specified in redeclaration")
	ErrParameterDiffers   = errors.New("parameter value differs from prior declaration")
	ErrInvalidObjectID    = errors.New("invalid object id")
	ErrSingletonViolation = errors.New("singleton type already has an object")
)

// ID identifies an object by its type name (e.g. "__file") and object id
// (e.g. "/etc/motd", normalized to "etc/motd").
type ID struct {
	Type string
	ID   string
}

// FQ renders the canonical "<type>/<object_id>" form used in __object_fq and
// in require entries.
func (o ID) FQ() string { return o.Type + "/" + o.ID }

// ParameterConflictError is returned when a redeclaration disagrees with the
// first declaration of an object's parameters.
type ParameterConflictError struct {
	Object          ID
	Parameter       string
	PriorManifest   string
	CurrentManifest string
	Reason          error
}

func (e *ParameterConflictError) Error() string {
	return fmt.Sprintf("object %s: parameter %q: %v (declared in %s, redeclared in %s)",
		e.Object.FQ(), e.Parameter, e.Reason, e.PriorManifest, e.CurrentManifest)
}

func (e *ParameterConflictError) Unwrap() error { return e.Reason }

// Store is the object store, backed by an afero.Fs rooted at objectBaseDir
// (e.g. "<scratch>/out/object").
type Store struct {
	fs      afero.Fs
	baseDir string
}

// New returns a Store rooted at baseDir on fs. Production callers pass
// afero.NewOsFs(); tests pass afero.NewMemMapFs().
func New(fs afero.Fs, baseDir string) *Store {
	return &Store{fs: fs, baseDir: baseDir}
}

// NormalizeObjectID strips a single leading separator and rejects ".."
// components, per the object-id normalization invariant.
func NormalizeObjectID(raw string) (string, error) {
	id := strings.TrimPrefix(raw, "/")
	if id == "" {
		return "", fmt.Errorf("%w: empty object id", ErrInvalidObjectID)
	}
	for _, part := range strings.Split(id, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q contains \"..\"", ErrInvalidObjectID, raw)
		}
	}
	return id, nil
}

func (s *Store) dir(obj ID) string {
	return s.baseDir + "/" + obj.Type + "/" + obj.ID
}

func (s *Store) cdistDir(obj ID) string {
	return s.dir(obj) + "/" + cdistMarker
}

// Paths reports the object's directory and its .cdist metadata directory.
func (s *Store) Paths(obj ID) (objectDir, cdistDir string) {
	return s.dir(obj), s.cdistDir(obj)
}

// Exists reports whether obj has already been persisted.
func (s *Store) Exists(obj ID) (bool, error) {
	return afero.DirExists(s.fs, s.cdistDir(obj))
}

// List returns every persisted object, sorted by (type, id) for
// deterministic iteration.
func (s *Store) List() ([]ID, error) {
	var out []ID

	exists, err := afero.DirExists(s.fs, s.baseDir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return out, nil
	}

	err = walk(s.fs, s.baseDir, func(path string, isDir bool) error {
		if !isDir {
			return nil
		}
		marker := path + "/" + cdistMarker
		ok, err := afero.DirExists(s.fs, marker)
		if err != nil || !ok {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, s.baseDir), "/")
		parts := strings.SplitN(rel, "/", 2)
		if len(parts) != 2 {
			return nil
		}
		out = append(out, ID{Type: parts[0], ID: parts[1]})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// walk is a minimal recursive directory walker; afero.Walk's afero.File
// callback argument makes simple recursive matching awkward, so List uses
// this instead.
func walk(fs afero.Fs, dir string, fn func(path string, isDir bool) error) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := dir + "/" + entry.Name()
		if err := fn(path, entry.IsDir()); err != nil {
			return err
		}
		if entry.IsDir() {
			if err := walk(fs, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create declares obj with the given parameters, as the manifest named by
// sourceManifest. If the object already exists, parameters are reconciled
// per the redeclaration rules: missing-then-present or differing values are
// fatal; identical redeclaration just appends to source.
func (s *Store) Create(obj ID, sourceManifest string, params map[string]string) error {
	exists, err := s.Exists(obj)
	if err != nil {
		return err
	}

	if !exists {
		if err := s.fs.MkdirAll(s.cdistDir(obj), 0755); err != nil {
			return err
		}
		if err := s.fs.MkdirAll(s.cdistDir(obj)+"/parameter", 0755); err != nil {
			return err
		}
		for name, value := range params {
			if err := afero.WriteFile(s.fs, s.cdistDir(obj)+"/parameter/"+name, []byte(value), 0644); err != nil {
				return err
			}
		}
		return s.AppendSource(obj, sourceManifest)
	}

	priorSource, err := s.lastSource(obj)
	if err != nil {
		return err
	}

	for name, value := range params {
		path := s.cdistDir(obj) + "/parameter/" + name
		existing, err := afero.Exists(s.fs, path)
		if err != nil {
			return err
		}
		if !existing {
			return &ParameterConflictError{Object: obj, Parameter: name, PriorManifest: priorSource, CurrentManifest: sourceManifest, Reason: ErrNewParameter}
		}
		priorRaw, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return err
		}
		if strip(string(priorRaw)) != strip(value) {
			return &ParameterConflictError{Object: obj, Parameter: name, PriorManifest: priorSource, CurrentManifest: sourceManifest, Reason: ErrParameterDiffers}
		}
	}

	return s.AppendSource(obj, sourceManifest)
}

func strip(s string) string {
	return strings.TrimSuffix(s, "\n")
}

// AppendRequire appends fully qualified dependency ids to obj's require
// file, one per line.
func (s *Store) AppendRequire(obj ID, deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	return appendLines(s.fs, s.cdistDir(obj)+"/require", deps)
}

// Require returns obj's declared dependencies, in declaration order.
func (s *Store) Require(obj ID) ([]string, error) {
	return readLines(s.fs, s.cdistDir(obj)+"/require")
}

// AppendSource appends manifest to obj's source file.
func (s *Store) AppendSource(obj ID, manifest string) error {
	return appendLines(s.fs, s.cdistDir(obj)+"/source", []string{manifest})
}

// Source returns every manifest that declared or redeclared obj.
func (s *Store) Source(obj ID) ([]string, error) {
	return readLines(s.fs, s.cdistDir(obj)+"/source")
}

func (s *Store) lastSource(obj ID) (string, error) {
	lines, err := s.Source(obj)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "(unknown)", nil
	}
	return lines[len(lines)-1], nil
}

// WriteExplorer saves a type explorer's captured stdout at obj's
// explorer/<name>.
func (s *Store) WriteExplorer(obj ID, name string, data []byte) error {
	dir := s.cdistDir(obj) + "/explorer"
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, dir+"/"+name, data, 0644)
}

// Explorer reads a previously captured type explorer output, or
// ("", false) if it was never run.
func (s *Store) Explorer(obj ID, name string) (string, bool, error) {
	path := s.cdistDir(obj) + "/explorer/" + name
	ok, err := afero.Exists(s.fs, path)
	if err != nil || !ok {
		return "", false, err
	}
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// MarkChanged creates obj's empty changed marker, signaling that gencode
// produced nontrivial output.
func (s *Store) MarkChanged(obj ID) error {
	return afero.WriteFile(s.fs, s.cdistDir(obj)+"/changed", nil, 0644)
}

// Changed reports whether obj's changed marker is present.
func (s *Store) Changed(obj ID) (bool, error) {
	return afero.Exists(s.fs, s.cdistDir(obj)+"/changed")
}

// Parameter reads a single declared parameter value, or ("", false) if
// unset.
func (s *Store) Parameter(obj ID, name string) (string, bool, error) {
	path := s.cdistDir(obj) + "/parameter/" + name
	ok, err := afero.Exists(s.fs, path)
	if err != nil || !ok {
		return "", false, err
	}
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", false, err
	}
	return strip(string(raw)), true, nil
}

func appendLines(fs afero.Fs, path string, lines []string) error {
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.Write([]byte(line + "\n")); err != nil {
			return err
		}
	}
	return nil
}

func readLines(fs afero.Fs, path string) ([]string, error) {
	ok, err := afero.Exists(fs, path)
	if err != nil || !ok {
		return nil, err
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
