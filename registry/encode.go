package registry

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

// RequestRecord is a request row together with its per-instance lifecycle
// state: membership status, the outstanding solver refund ledger entry
// (nil once consumed), and the cancellation staging time (0 if unstaged).
type RequestRecord struct {
	Request        *agreement.SwapRequest
	Status         agreement.RequestStatus
	RefundAmount   *big.Int
	CancelStagedAt uint64
}

// sqlRequest mirrors the swap_request row with sql-storable field types.
// Addresses and hashes are stored as hex without the 0x prefix; amounts as
// hex big ints; hook lists as gob blobs.
type sqlRequest struct {
	RequestId          string
	Sender             string
	Recipient          string
	TokenIn            string
	TokenOut           string
	AmountOut          string
	SourceChainId      string
	DestinationChainId string
	VerificationFee    string
	SolverFee          string
	Nonce              uint64
	Executed           int
	RequestedAt        uint64
	PreHooks           []byte
	PostHooks          []byte
	RefundAmount       sql.NullString
	CancelStagedAt     sql.NullInt64
	Status             string
}

func encodeRequest(rec *RequestRecord) (*sqlRequest, error) {
	r := rec.Request

	preHooks, err := encodeHooks(r.PreHooks)
	if err != nil {
		return nil, err
	}
	postHooks, err := encodeHooks(r.PostHooks)
	if err != nil {
		return nil, err
	}

	executed := 0
	if r.Executed {
		executed = 1
	}

	s := &sqlRequest{
		RequestId:          hashHex(r.RequestId()),
		Sender:             addrHex(r.Sender),
		Recipient:          addrHex(r.Recipient),
		TokenIn:            addrHex(r.TokenIn),
		TokenOut:           addrHex(r.TokenOut),
		AmountOut:          bigHex(r.AmountOut),
		SourceChainId:      bigHex(r.SourceChainId),
		DestinationChainId: bigHex(r.DestinationChainId),
		VerificationFee:    bigHex(r.VerificationFee),
		SolverFee:          bigHex(r.SolverFee),
		Nonce:              r.Nonce,
		Executed:           executed,
		RequestedAt:        r.RequestedAt,
		PreHooks:           preHooks,
		PostHooks:          postHooks,
		Status:             string(rec.Status),
	}

	if rec.RefundAmount != nil {
		s.RefundAmount = sql.NullString{String: bigHex(rec.RefundAmount), Valid: true}
	}
	if rec.CancelStagedAt != 0 {
		s.CancelStagedAt = sql.NullInt64{Int64: int64(rec.CancelStagedAt), Valid: true}
	}

	return s, nil
}

func (s *sqlRequest) decode() (*RequestRecord, error) {
	preHooks, err := decodeHooks(s.PreHooks)
	if err != nil {
		return nil, err
	}
	postHooks, err := decodeHooks(s.PostHooks)
	if err != nil {
		return nil, err
	}

	rec := &RequestRecord{
		Request: &agreement.SwapRequest{
			Sender:             ethcommon.HexToAddress(s.Sender),
			Recipient:          ethcommon.HexToAddress(s.Recipient),
			TokenIn:            ethcommon.HexToAddress(s.TokenIn),
			TokenOut:           ethcommon.HexToAddress(s.TokenOut),
			AmountOut:          common.HexStrToBigInt(s.AmountOut),
			SourceChainId:      common.HexStrToBigInt(s.SourceChainId),
			DestinationChainId: common.HexStrToBigInt(s.DestinationChainId),
			VerificationFee:    common.HexStrToBigInt(s.VerificationFee),
			SolverFee:          common.HexStrToBigInt(s.SolverFee),
			Nonce:              s.Nonce,
			Executed:           s.Executed == 1,
			RequestedAt:        s.RequestedAt,
			PreHooks:           preHooks,
			PostHooks:          postHooks,
		},
		Status: agreement.RequestStatus(s.Status),
	}

	if s.RefundAmount.Valid {
		rec.RefundAmount = common.HexStrToBigInt(s.RefundAmount.String)
	}
	if s.CancelStagedAt.Valid {
		rec.CancelStagedAt = uint64(s.CancelStagedAt.Int64)
	}

	return rec, nil
}

type sqlReceipt struct {
	RequestId          string
	Solver             string
	Recipient          string
	TokenOut           string
	AmountOut          string
	SourceChainId      string
	DestinationChainId string
	FulfilledAt        uint64
}

func encodeReceipt(id ethcommon.Hash, r *agreement.FulfillmentReceipt) *sqlReceipt {
	return &sqlReceipt{
		RequestId:          hashHex(id),
		Solver:             addrHex(r.Solver),
		Recipient:          addrHex(r.Recipient),
		TokenOut:           addrHex(r.TokenOut),
		AmountOut:          bigHex(r.AmountOut),
		SourceChainId:      bigHex(r.SourceChainId),
		DestinationChainId: bigHex(r.DestinationChainId),
		FulfilledAt:        r.FulfilledAt,
	}
}

func (s *sqlReceipt) decode() *agreement.FulfillmentReceipt {
	return &agreement.FulfillmentReceipt{
		RequestId:          ethcommon.HexToHash(s.RequestId),
		Solver:             ethcommon.HexToAddress(s.Solver),
		Recipient:          ethcommon.HexToAddress(s.Recipient),
		TokenOut:           ethcommon.HexToAddress(s.TokenOut),
		AmountOut:          common.HexStrToBigInt(s.AmountOut),
		SourceChainId:      common.HexStrToBigInt(s.SourceChainId),
		DestinationChainId: common.HexStrToBigInt(s.DestinationChainId),
		FulfilledAt:        s.FulfilledAt,
	}
}

func encodeHooks(hooks []agreement.Hook) ([]byte, error) {
	if hooks == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(hooks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHooks(data []byte) ([]agreement.Hook, error) {
	if data == nil {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, errors.New("expect non-empty hook bytes")
	}

	var hooks []agreement.Hook
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

func hashHex(h ethcommon.Hash) string {
	return common.Trim0xPrefix(h.Hex())
}

func addrHex(a ethcommon.Address) string {
	return common.Trim0xPrefix(a.Hex())
}

func bigHex(n *big.Int) string {
	if n == nil {
		n = new(big.Int)
	}
	return common.Trim0xPrefix(common.BigIntToHexStr(n))
}
