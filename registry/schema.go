package registry

import "strings"

var (
	zeroBytes32 = strings.Repeat("0", 64)
	zeroBytes20 = strings.Repeat("0", 40)

	// Canonical request records, keyed by the derived request id. Hook
	// lists are gob blobs and are deleted (set NULL) on the terminal
	// transition to bound storage growth. refundAmount is the solver
	// refund ledger entry; NULL once consumed.
	requestTable = `CREATE TABLE IF NOT EXISTS swap_request (
		requestId CHAR(64) PRIMARY KEY NOT NULL,
		sender CHAR(40) NOT NULL,
		recipient CHAR(40) NOT NULL,
		tokenIn CHAR(40) NOT NULL,
		tokenOut CHAR(40) NOT NULL,
		amountOut VARCHAR(64) NOT NULL,
		sourceChainId VARCHAR(64) NOT NULL,
		destinationChainId VARCHAR(64) NOT NULL,
		verificationFee VARCHAR(64) NOT NULL,
		solverFee VARCHAR(64) NOT NULL,
		nonce BIGINT UNSIGNED NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0,
		requestedAt BIGINT UNSIGNED NOT NULL,
		preHooks BLOB,
		postHooks BLOB,
		refundAmount VARCHAR(64),
		cancelStagedAt BIGINT UNSIGNED,
		CONSTRAINT chk_requestId CHECK (requestId != '` + zeroBytes32 + `'),
		CONSTRAINT chk_sender CHECK (sender != '` + zeroBytes20 + `'),
		CONSTRAINT chk_recipient CHECK (recipient != '` + zeroBytes20 + `'),
		CONSTRAINT chk_executed CHECK (executed IN (0, 1))
	);`

	// Membership set: every id this instance has seen is in exactly one
	// status; fulfilled and cancelled are terminal.
	membershipTable = `CREATE TABLE IF NOT EXISTS membership (
		requestId CHAR(64) PRIMARY KEY NOT NULL,
		status VARCHAR(12) NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('unfulfilled', 'fulfilled', 'cancelled'))
	);`

	// Fulfillment receipts, written once by the destination-ledger relay.
	receiptTable = `CREATE TABLE IF NOT EXISTS receipt (
		requestId CHAR(64) PRIMARY KEY NOT NULL,
		solver CHAR(40) NOT NULL,
		recipient CHAR(40) NOT NULL,
		tokenOut CHAR(40) NOT NULL,
		amountOut VARCHAR(64) NOT NULL,
		sourceChainId VARCHAR(64) NOT NULL,
		destinationChainId VARCHAR(64) NOT NULL,
		fulfilledAt BIGINT UNSIGNED NOT NULL
	);`

	// Per-token protocol fee accumulator.
	feeBalanceTable = `CREATE TABLE IF NOT EXISTS fee_balance (
		token CHAR(40) PRIMARY KEY NOT NULL,
		amount VARCHAR(64) NOT NULL
	);`

	// Append-only event journal; rowid ordering is the sequence.
	journalTable = `CREATE TABLE IF NOT EXISTS journal (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind VARCHAR(24) NOT NULL,
		requestId CHAR(64) NOT NULL,
		token CHAR(40) NOT NULL,
		amount VARCHAR(64) NOT NULL,
		at BIGINT UNSIGNED NOT NULL
	);`

	// Admin-gated route and chain permissions.
	chainAllowedTable = `CREATE TABLE IF NOT EXISTS chain_allowed (
		chainId VARCHAR(64) PRIMARY KEY NOT NULL
	);`

	tokenRouteTable = `CREATE TABLE IF NOT EXISTS token_route (
		tokenIn CHAR(40) NOT NULL,
		destinationChainId VARCHAR(64) NOT NULL,
		tokenOut CHAR(40) NOT NULL,
		PRIMARY KEY (tokenIn, destinationChainId, tokenOut)
	);`

	// Key-value pairs. Both key and value are 32-byte hex strings without
	// the 0x prefix. Holds the request nonce and governance nonces.
	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key CHAR(64) PRIMARY KEY NOT NULL,
		value CHAR(64) NOT NULL
	);`

	allTables = requestTable + membershipTable + receiptTable +
		feeBalanceTable + journalTable + chainAllowedTable +
		tokenRouteTable + kvTable
)
