package commands

import (
	"context"
	"encoding/json"

	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/node"
	"github.com/spf13/cobra"
)

var (
	proposeTo       string
	proposeAmount   string
	proposeParents  []string
	proposePriority uint8
	proposeContract string
	proposePayload  string
)

//NewProposeCmd returns the command that proposes a single transaction with
//the key of the data directory, acting as a leader for the validators of
//peers.json
func NewProposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "propose",
		Short:   "Propose one transaction and exit",
		PreRunE: loadConfig,
		RunE:    proposeOnce,
	}
	AddNodeFlags(cmd)
	AddProposeFlags(cmd)
	return cmd
}

//AddProposeFlags adds flags to the propose command
func AddProposeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&proposeTo, "to", "", "Receiver of the transfer")
	cmd.Flags().StringVar(&proposeAmount, "amount", "", "Amount, as a decimal")
	cmd.Flags().StringSliceVar(&proposeParents, "parents", nil, "Ids of the parent transactions")
	cmd.Flags().Uint8Var(&proposePriority, "priority", 0, "Priority of the transaction")
	cmd.Flags().StringVar(&proposeContract, "contract", "", "Name of the contract to run once committed")
	cmd.Flags().StringVar(&proposePayload, "payload", "", "Payload handed to the contract")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")
}

func proposeOnce(cmd *cobra.Command, args []string) error {
	p := &proposal{
		Receiver: proposeTo,
		Amount:   proposeAmount,
		Parents:  proposeParents,
		Priority: proposePriority,
	}
	if proposeContract != "" {
		p.Contract = &dag.ContractRef{Name: proposeContract, Payload: proposePayload}
	}

	amount, err := dag.ParseAmount(p.Amount)
	if err != nil {
		return err
	}

	_config.Leader = true

	n := node.NewNode(_config)
	if err := n.Init(); err != nil {
		return err
	}
	n.RunAsync()
	defer n.Shutdown()

	receipt, err := propose(context.Background(), n, p, amount)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(receipt)
}
