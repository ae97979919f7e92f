package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/dagledger/src/node"
	"github.com/spf13/cobra"
)

//NewRunCmd returns the command that starts a node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run node",
		Long: `Run a validator, or with --leader, a leader reading one JSON proposal
per line on stdin:

  {"receiver": "0X04...", "amount": "12.5", "parents": ["tx-..."], "contract": {"name": "transfer"}}`,
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddNodeFlags(cmd)
	cmd.Flags().Bool("leader", _config.Leader, "Propose transactions read from stdin")
	return cmd
}

func runNode(cmd *cobra.Command, args []string) error {
	n := node.NewNode(_config)

	if err := n.Init(); err != nil {
		_config.Logger().WithError(err).Error("Cannot initialize node")
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		_config.Logger().Debug("Reacting to signal - SHUTDOWN")
		n.Shutdown()
	}()

	if _config.Leader {
		n.RunAsync()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := proposeLines(ctx, n, os.Stdin, cmd.OutOrStdout()); err != nil {
				_config.Logger().WithError(err).Error("Reading proposals")
			}
		}()
	}

	n.Run()

	return nil
}
