package commands

import (
	"github.com/mosaicnetworks/dagledger/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for dagledger
var RootCmd = &cobra.Command{
	Use:              "dagledger",
	Short:            "signed-transaction DAG ledger",
	TraverseChildren: true,
}
