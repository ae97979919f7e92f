package commands

import (
	"io"
	"os"

	"github.com/mosaicnetworks/dagledger/src/store"
	"github.com/spf13/cobra"
)

var dotOut string

//NewDotCmd returns the command that dumps the ledger persisted in the
//database directory as a Graphviz DOT graph
func NewDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dot",
		Short:   "Write the persisted ledger as a Graphviz DOT graph",
		PreRunE: loadConfig,
		RunE:    dumpDOT,
	}
	AddDotFlags(cmd)
	return cmd
}

//AddDotFlags adds flags to the dot command
func AddDotFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
	cmd.Flags().StringVarP(&dotOut, "out", "o", "", "Output file (defaults to stdout)")
}

func dumpDOT(cmd *cobra.Command, args []string) error {
	s, err := store.LoadBadgerStore(_config.DatabaseDir, _config.Logger())
	if err != nil {
		return err
	}
	defer s.Close()

	var w io.Writer = cmd.OutOrStdout()
	if dotOut != "" {
		f, err := os.Create(dotOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return writeStoreDOT(s, w)
}

func writeStoreDOT(s store.Store, w io.Writer) error {
	snap, err := s.Load()
	if err != nil {
		return err
	}
	return snap.WriteDOT(w)
}
