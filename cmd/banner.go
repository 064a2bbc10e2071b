package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const banner = `
               _ _     _
  ___ __| (_)___| |_
 / __/ _` + "`" + ` | / __| __|
| (_| (_| | \__ \ |_
 \___\__,_|_|___/\__|

push-mode configuration management
`

var bannerCmd = &cobra.Command{
	Use:   "banner",
	Short: "Print the cdist banner",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(banner)
	},
}
