package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"cdist/cdisttype"
	"cdist/cmd"
	"cdist/emulator"
)

func main() {
	if emulator.IsEmulatorInvocation(os.Args[0]) {
		if err := runEmulator(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
			os.Exit(1)
		}
		return
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runEmulator handles a re-exec of this binary under a "__typename" symlink,
// the mechanism a manifest uses to declare a configuration object: the
// orchestrator populates a per-host bin directory with symlinks to this
// same executable, one per type, and PATH makes a manifest's "__file ..."
// invocation resolve to one of them.
func runEmulator(argv []string) error {
	env := emulator.EnvFromOS()
	if env.TypeBaseDir == "" {
		return fmt.Errorf("__cdist_type_base_path is not set; not running inside a manifest")
	}

	typeName := filepath.Base(argv[0])
	typ, err := cdisttype.Load(env.TypeBaseDir, typeName)
	if err != nil {
		return fmt.Errorf("loading type: %w", err)
	}

	return emulator.Run(afero.NewOsFs(), argv, env, emulator.ParamListsFromType(typ))
}
