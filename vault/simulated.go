// Package vault carries the consumed value-transfer primitives. The real
// deployment's token contracts are outside this system; SimVault is the
// ledger-side stand-in the engine and its tests run against, and
// PermitVault layers the permit-signed transfer path on top of any
// TokenVault.
package vault

import (
	"errors"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrTransferFailed      = errors.New("token transfer failed")
)

// SimVault is an in-memory custody ledger: token -> owner -> balance.
// FailNext injects one transfer failure, for testing the engine's
// all-or-nothing behavior on external-dependency failure.
type SimVault struct {
	mu       sync.Mutex
	balances map[ethcommon.Address]map[ethcommon.Address]*big.Int
	FailNext bool
}

func NewSimVault() *SimVault {
	return &SimVault{
		balances: make(map[ethcommon.Address]map[ethcommon.Address]*big.Int),
	}
}

// Mint credits owner with amount of token. Test setup only.
func (v *SimVault) Mint(token, owner ethcommon.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(token, owner, amount)
}

func (v *SimVault) Transfer(token, from, to ethcommon.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.FailNext {
		v.FailNext = false
		return ErrTransferFailed
	}

	balance := v.balance(token, from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	balance.Sub(balance, amount)
	v.credit(token, to, amount)
	return nil
}

func (v *SimVault) BalanceOf(token, owner ethcommon.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(token, owner)), nil
}

func (v *SimVault) balance(token, owner ethcommon.Address) *big.Int {
	owners, ok := v.balances[token]
	if !ok {
		owners = make(map[ethcommon.Address]*big.Int)
		v.balances[token] = owners
	}
	balance, ok := owners[owner]
	if !ok {
		balance = new(big.Int)
		owners[owner] = balance
	}
	return balance
}

func (v *SimVault) credit(token, owner ethcommon.Address, amount *big.Int) {
	balance := v.balance(token, owner)
	balance.Add(balance, amount)
}
