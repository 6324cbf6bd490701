package testutil

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// BurnMessage builds a version 0 CCTP message with a burn body.
func BurnMessage(src, dst types.Domain, nonce uint64, amount *big.Int, recipient, burnToken, sender common.Address) []byte {
	body := make([]byte, 132)
	copy(body[4:36], common.LeftPadBytes(burnToken.Bytes(), 32))
	copy(body[36:68], common.LeftPadBytes(recipient.Bytes(), 32))
	copy(body[68:100], common.LeftPadBytes(amount.Bytes(), 32))
	copy(body[100:132], common.LeftPadBytes(sender.Bytes(), 32))

	msg := make([]byte, 116, 116+len(body))
	binary.BigEndian.PutUint32(msg[4:8], uint32(src))
	binary.BigEndian.PutUint32(msg[8:12], uint32(dst))
	binary.BigEndian.PutUint64(msg[12:20], nonce)
	copy(msg[20:52], common.LeftPadBytes(sender.Bytes(), 32))
	return append(msg, body...)
}
