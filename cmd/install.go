package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// installCmd parses identically to configCmd (it shares the same flag
// registration in config.go's init) but performs no action. Bootstrap
// semantics, like distributing SSH keys, verifying a target's interpreter,
// and provisioning prerequisites before the first config run, have no
// design yet, so this stays a stub rather than silently aliasing config.
var installCmd = &cobra.Command{
	Use:   "install [host-or-group...]",
	Short: "Bootstrap a host before its first config run (not yet implemented)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("install: no bootstrap phase is implemented; run cdist config directly")
		return nil
	},
}
