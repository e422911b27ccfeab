package commands

import (
	"github.com/mosaicnetworks/disputes/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for the dispute coordinator
var RootCmd = &cobra.Command{
	Use:              "disputes",
	Short:            "dispute vote coordinator",
	TraverseChildren: true,
}
