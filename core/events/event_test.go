package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestBufferFlushAndDrop(t *testing.T) {
	rec := &Recorder{}
	buf := &Buffer{Next: Multi{rec, nil, NoopEmitter{}}}

	buf.Emit(TokenMint{Asset: "USDX", To: common.HexToAddress("0x10"), Amount: uint256.NewInt(1)})
	require.Equal(t, 1, buf.Len())
	require.Empty(t, rec.Events, "buffered events are held back")

	buf.Drop()
	require.Zero(t, buf.Len())
	buf.Flush()
	require.Empty(t, rec.Events)

	buf.Emit(TokenTransfer{Asset: "USDX", Amount: uint256.NewInt(2)})
	buf.Emit(TokenApproval{Asset: "USDX"})
	buf.Flush()
	require.Equal(t, []string{TypeTokenTransfer, TypeTokenApproval}, rec.Types())
	require.Zero(t, buf.Len())
}

func TestBankEventPayloads(t *testing.T) {
	evt := TokenTransfer{
		Asset:  "USDX",
		From:   common.HexToAddress("0x10"),
		To:     common.HexToAddress("0xaa"),
		Amount: uint256.NewInt(250),
	}.Event()
	require.Equal(t, TypeTokenTransfer, evt.Type)
	require.Equal(t, "250", evt.Attributes["amount"])
	require.Equal(t, common.HexToAddress("0xaa").Hex(), evt.Attributes["to"])

	approval := TokenApproval{Asset: "USDX"}.Event()
	require.Equal(t, "0", approval.Attributes["amount"], "nil amounts render as zero")
}

func TestBufferWithoutNextDiscards(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(TokenMint{Asset: "USDX"})
	buf.Flush()
	require.Zero(t, buf.Len())
}
