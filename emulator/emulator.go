// Package emulator implements the type emulator: the shim a manifest
// invokes as "__typename" to declare a configuration object. It is the
// rendezvous point between user shell code and the object store.
package emulator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"cdist/cdisttype"
	"cdist/object"
)

// TypePrefix is the basename prefix that identifies an emulator invocation,
// matching the "__name" convention every type directory uses.
const TypePrefix = "__"

// IsEmulatorInvocation reports whether argv0's basename looks like a type
// name, the signal main.go uses to dispatch into emulator mode instead of
// parsing cobra flags.
func IsEmulatorInvocation(argv0 string) bool {
	return strings.HasPrefix(filepath.Base(argv0), TypePrefix)
}

// ParamLists carries a type's required and optional parameter names and its
// singleton marker, so tests can supply them without a real type directory.
type ParamLists struct {
	Required  []string
	Optional  []string
	Singleton bool
}

// Env is the subset of the manifest's environment the emulator consumes.
type Env struct {
	TypeBaseDir     string // __cdist_type_base_path
	ObjectBaseDir   string // __global + "/object"
	CurrentManifest string // __cdist_manifest
	Require         string // __require, whitespace-separated, may be empty
}

// Run performs one emulator invocation: argv[0] names the type, argv[1:]
// are its long-option parameters plus (for non-singleton types) a single
// positional object id.
func Run(fs afero.Fs, argv []string, env Env, lists ParamLists) error {
	if len(argv) == 0 {
		return fmt.Errorf("emulator: empty argv")
	}
	typeName := filepath.Base(argv[0])

	flags := pflag.NewFlagSet(typeName, pflag.ContinueOnError)
	values := make(map[string]*string, len(lists.Required)+len(lists.Optional))
	for _, name := range lists.Required {
		values[name] = flags.String(name, "", "required parameter")
	}
	for _, name := range lists.Optional {
		values[name] = flags.String(name, "", "optional parameter")
	}

	if err := flags.Parse(argv[1:]); err != nil {
		return fmt.Errorf("emulator: %s: parsing arguments: %w", typeName, err)
	}

	for _, name := range lists.Required {
		if !flags.Changed(name) {
			return fmt.Errorf("emulator: %s: missing required parameter %q", typeName, name)
		}
	}

	var objectID string
	if lists.Singleton {
		if flags.NArg() != 0 {
			return fmt.Errorf("emulator: %s: singleton type takes no positional object id", typeName)
		}
		objectID = "singleton"
	} else {
		if flags.NArg() != 1 {
			return fmt.Errorf("emulator: %s: expected exactly one object id, got %d", typeName, flags.NArg())
		}
		var err error
		objectID, err = object.NormalizeObjectID(flags.Arg(0))
		if err != nil {
			return fmt.Errorf("emulator: %s: %w", typeName, err)
		}
	}

	params := make(map[string]string, len(values))
	for name, ptr := range values {
		if flags.Changed(name) {
			params[name] = *ptr
		}
	}

	store := object.New(fs, env.ObjectBaseDir)
	id := object.ID{Type: typeName, ID: objectID}

	if err := store.Create(id, env.CurrentManifest, params); err != nil {
		return err
	}

	if deps := strings.Fields(env.Require); len(deps) > 0 {
		if err := store.AppendRequire(id, deps); err != nil {
			return fmt.Errorf("emulator: %s: recording require: %w", typeName, err)
		}
	}

	return nil
}

// ParamListsFromType adapts a loaded type directory into the emulator's
// ParamLists.
func ParamListsFromType(t *cdisttype.Type) ParamLists {
	return ParamLists{Required: t.Required, Optional: t.Optional, Singleton: t.Singleton}
}

// EnvFromOS reads the Env fields the calling process's manifest script set,
// used by main.go's emulator-mode entry point.
func EnvFromOS() Env {
	return Env{
		TypeBaseDir:     os.Getenv("__cdist_type_base_path"),
		ObjectBaseDir:   filepath.Join(os.Getenv("__global"), "object"),
		CurrentManifest: os.Getenv("__cdist_manifest"),
		Require:         os.Getenv("__require"),
	}
}
