package inscribe

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kasmarket/prophet-engine/pkg/helpers"
)

// Op identifies a KRC-20-style inscription operation.
type Op string

const (
	OpDeploy   Op = "deploy"
	OpMint     Op = "mint"
	OpTransfer Op = "transfer"
)

// DeployPayload is the inscription body for a token deployment.
type DeployPayload struct {
	P    string `json:"p"`
	Op   Op     `json:"op"`
	Tick string `json:"tick"`
	Max  string `json:"max"`
	Lim  string `json:"lim"`
	Dec  string `json:"dec"`
}

// MintPayload is the inscription body for a mint operation.
type MintPayload struct {
	P    string `json:"p"`
	Op   Op     `json:"op"`
	Tick string `json:"tick"`
}

// TransferPayload is the inscription body for a transfer operation.
type TransferPayload struct {
	P    string `json:"p"`
	Op   Op     `json:"op"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
	To   string `json:"to"`
}

const protocolName = "krc-20"

// NewDeployPayload builds a deploy payload with max/lim/dec already
// formatted as protocol-required decimal strings.
func NewDeployPayload(tick string, maxSupplyBaseUnits, mintLimitBaseUnits string, decimals int) DeployPayload {
	return DeployPayload{P: protocolName, Op: OpDeploy, Tick: tick, Max: maxSupplyBaseUnits, Lim: mintLimitBaseUnits, Dec: strconv.Itoa(decimals)}
}

// NewMintPayload builds a mint payload.
func NewMintPayload(tick string) MintPayload {
	return MintPayload{P: protocolName, Op: OpMint, Tick: tick}
}

// NewTransferPayload builds a transfer payload; amountBaseUnits must
// already be the integer base-unit string (8 decimals, e.g. "1933000000"
// for 19.33 tokens).
func NewTransferPayload(tick, amountBaseUnits, to string) TransferPayload {
	return TransferPayload{P: protocolName, Op: OpTransfer, Tick: tick, Amt: amountBaseUnits, To: to}
}

// Marshal produces the minified ASCII JSON bytes for any payload type,
// matching the protocol's "minified, ASCII only" wire requirement.
func Marshal(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

// BaseUnits converts a decimal share quantity (e.g. 19.33) into the
// protocol's 8-decimal integer base-unit string (e.g. "1933000000"), using
// the same big.Int decimal<->base-unit conversion the indexer and wallet
// balance paths share. A conversion failure (negative or non-finite
// amount) must surface to the caller: an inscription carrying a defaulted
// amount would diverge from the ledger it settles.
func BaseUnits(amount float64) (string, error) {
	units, err := helpers.ParseAmount(strconv.FormatFloat(amount, 'f', 8, 64), 8)
	if err != nil {
		return "", fmt.Errorf("inscribe: convert %v to base units: %w", amount, err)
	}
	return strconv.FormatUint(units, 10), nil
}
