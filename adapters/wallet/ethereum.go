package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// EthereumRecoverer recovers signers of EIP-191 personal_sign messages.
type EthereumRecoverer struct{}

// NewEthereumRecoverer creates a new Ethereum signer recoverer
func NewEthereumRecoverer() ports.SignerRecoverer {
	return EthereumRecoverer{}
}

// CanonicalAddress returns the EIP-55 checksummed form of raw.
func (EthereumRecoverer) CanonicalAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", core.NewValidationError(core.FieldError{Field: "walletAddress", Reason: "invalid ethereum address"})
	}
	return common.HexToAddress(raw).Hex(), nil
}

// RecoverSigner recovers the address that signed message.
// Both 0/1 and 27/28 recovery ids are accepted.
func (EthereumRecoverer) RecoverSigner(message, signature string) (string, error) {
	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(decodedSig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	sig := make([]byte, len(decodedSig))
	copy(sig, decodedSig)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
