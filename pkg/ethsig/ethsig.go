// Package ethsig checks Ethereum personal_sign (EIP-191) signatures.
package ethsig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an r || s || v signature.
const SignatureLength = crypto.SignatureLength

var (
	ErrMalformedSignature = errors.New("ethsig: malformed signature")
	ErrMismatch           = errors.New("ethsig: signature does not match address")
)

// ValidAddress reports whether s is a 0x-prefixed 20 byte hex address.
func ValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// Recover returns the lowercase address that produced signature over
// message, using the personal_sign prefix.
//
// Wallets emit v as 27/28; both that and the raw 0/1 form are accepted.
func Recover(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return "", fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Verify checks that signature over message was produced by address.
func Verify(address, message, signature string) error {
	if !ValidAddress(address) {
		return fmt.Errorf("ethsig: invalid address %q", address)
	}
	got, err := Recover(message, signature)
	if err != nil {
		return err
	}
	if got != strings.ToLower(address) {
		return ErrMismatch
	}
	return nil
}

// Checker verifies signatures before they are sent to the backend.
type Checker struct{}

// NewChecker returns a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check implements the session manager's signature checker.
func (Checker) Check(address, message, signature string) error {
	return Verify(address, message, signature)
}
