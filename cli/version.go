package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanchitsharma77/airweave-sub002/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build and dependency information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
