package settle

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// DefaultVersion is the reported protocol version when the config leaves it
// empty. Versioning is a configuration parameter, nothing in the engine
// branches on it.
const DefaultVersion = "1.0.0"

type Config struct {
	// ChainId identifies the ledger this engine instance runs on. Requests
	// are repaid only where they were created.
	ChainId *big.Int

	// FeeBps is the initial verification-fee rate in basis points; the
	// admin may change it at runtime and the live value is persisted.
	FeeBps uint64

	// CancellationWindow is the mandatory delay, in ledger seconds,
	// between staging and executing a cancellation refund.
	CancellationWindow uint64

	// Version is the reported protocol version string.
	Version string

	// Admin gates the administrative surface.
	Admin ethcommon.Address

	// Custody is the engine's account in the token vault. Requested funds
	// sit here until repayment, cancellation or fee withdrawal.
	Custody ethcommon.Address

	// JournalBuffer sizes the event subscription channel.
	JournalBuffer int
}

func (cfg *Config) version() string {
	if cfg.Version == "" {
		return DefaultVersion
	}
	return cfg.Version
}

func (cfg *Config) journalBuffer() int {
	if cfg.JournalBuffer <= 0 {
		return 64
	}
	return cfg.JournalBuffer
}
