package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/mosaicnetworks/dagledger/src/node"
)

// proposal is one transaction request, as read from a leader's stdin. Amount
// is a decimal string such as "12.5". A line that sets Revoke asks for the
// revocation of that transaction instead.
type proposal struct {
	Revoke   string           `json:"revoke,omitempty"`
	Receiver string           `json:"receiver"`
	Amount   string           `json:"amount"`
	Parents  []string         `json:"parents"`
	Priority uint8            `json:"priority"`
	Contract *dag.ContractRef `json:"contract"`
}

type proposer interface {
	Propose(ctx context.Context,
		receiver string,
		amount dag.Amount,
		parents []string,
		priority uint8,
		ref *dag.ContractRef) (*node.Receipt, error)
	Revoke(ctx context.Context, id string) (int, error)
}

// revocation is the result line of a revoke request.
type revocation struct {
	Revoked    string `json:"revoked"`
	Validators int    `json:"validators"`
}

func parseProposal(line string) (*proposal, dag.Amount, error) {
	var p proposal
	if err := json.Unmarshal([]byte(line), &p); err != nil {
		return nil, 0, err
	}
	if p.Revoke != "" {
		return &p, 0, nil
	}
	if p.Receiver == "" {
		return nil, 0, fmt.Errorf("missing receiver")
	}
	amount, err := dag.ParseAmount(p.Amount)
	if err != nil {
		return nil, 0, err
	}
	return &p, amount, nil
}

func propose(ctx context.Context, n proposer, p *proposal, amount dag.Amount) (*node.Receipt, error) {
	return n.Propose(ctx, p.Receiver, amount, p.Parents, p.Priority, p.Contract)
}

// proposeLines submits one proposal per non-empty line of r and writes one
// JSON result per line to w. It returns when r is exhausted or ctx is done.
func proposeLines(ctx context.Context, n proposer, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		p, amount, err := parseProposal(line)
		if err != nil {
			enc.Encode(map[string]string{"error": err.Error()})
			continue
		}

		var result interface{}
		if p.Revoke != "" {
			validators, err := n.Revoke(ctx, p.Revoke)
			if err != nil {
				enc.Encode(map[string]string{"error": err.Error()})
				continue
			}
			result = &revocation{Revoked: p.Revoke, Validators: validators}
		} else {
			receipt, err := propose(ctx, n, p, amount)
			if err != nil {
				enc.Encode(map[string]string{"error": err.Error()})
				continue
			}
			result = receipt
		}

		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	return scanner.Err()
}
