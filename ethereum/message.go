package ethereum

import (
	"encoding/binary"
	"fmt"

	cctptypes "github.com/circlefin/noble-cctp/x/cctp/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// ExtractBurnMessage returns the payload of the single MessageSent event emitted by messageTransmitter.
func ExtractBurnMessage(receipt *ethtypes.Receipt, messageTransmitter common.Address) ([]byte, error) {
	if receipt == nil {
		return nil, types.NewTransferError(types.CodeMessageEventNotFound, "no receipt")
	}

	var found [][]byte
	for _, log := range receipt.Logs {
		if log == nil || log.Address != messageTransmitter || len(log.Topics) == 0 || log.Topics[0] != messageSent.ID {
			continue
		}
		event := make(map[string]interface{})
		if err := messageTransmitterABI.UnpackIntoMap(event, messageSent.Name, log.Data); err != nil {
			return nil, types.NewTransferError(types.CodeMessageEventNotFound,
				"unable to unpack MessageSent in tx %s: %v", receipt.TxHash.Hex(), err)
		}
		raw, ok := event["message"].([]byte)
		if !ok || len(raw) == 0 {
			return nil, types.NewTransferError(types.CodeMessageEventNotFound, "empty MessageSent payload in tx %s", receipt.TxHash.Hex())
		}
		found = append(found, raw)
	}

	switch len(found) {
	case 0:
		return nil, types.NewTransferError(types.CodeMessageEventNotFound,
			"tx %s has no MessageSent event from %s (%d logs)", receipt.TxHash.Hex(), messageTransmitter.Hex(), len(receipt.Logs))
	case 1:
		return found[0], nil
	default:
		return nil, types.NewTransferError(types.CodeMessageEventNotFound,
			"tx %s has %d MessageSent events, expected one", receipt.TxHash.Hex(), len(found))
	}
}

// PackMessageSentData ABI encodes a MessageSent event payload, the inverse of the log decoding above.
func PackMessageSentData(message []byte) ([]byte, error) {
	return messageSent.Inputs.NonIndexed().Pack(message)
}

// MessageSentTopic is the event signature hash of MessageSent(bytes).
func MessageSentTopic() common.Hash {
	return messageSent.ID
}

// HashMessage is the attestation service lookup key for a message.
func HashMessage(message []byte) common.Hash {
	return crypto.Keccak256Hash(message)
}

// BurnMessage is a decoded CCTP message carrying a burn body.
type BurnMessage struct {
	SourceDomain      types.Domain
	DestinationDomain types.Domain
	Nonce             uint64
	MintRecipient     [32]byte
	Body              *cctptypes.BurnMessage
}

// ParseBurnMessage decodes the message header and the burn body.
func ParseBurnMessage(raw []byte) (*BurnMessage, error) {
	msg, err := new(cctptypes.Message).Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse message: %w", err)
	}
	body, err := new(cctptypes.BurnMessage).Parse(msg.MessageBody)
	if err != nil {
		return nil, fmt.Errorf("unable to parse burn message body: %w", err)
	}

	out := &BurnMessage{
		SourceDomain:      types.Domain(msg.SourceDomain),
		DestinationDomain: types.Domain(msg.DestinationDomain),
		Nonce:             msg.Nonce,
		Body:              body,
	}
	copy(out.MintRecipient[:], body.MintRecipient)
	return out, nil
}

// UsedNonceKey is the MessageTransmitter usedNonces key: keccak256(abi.encodePacked(sourceDomain, nonce)).
func UsedNonceKey(sourceDomain types.Domain, nonce uint64) [32]byte {
	packed := make([]byte, 12)
	binary.BigEndian.PutUint32(packed[:4], uint32(sourceDomain))
	binary.BigEndian.PutUint64(packed[4:], nonce)
	return [32]byte(crypto.Keccak256Hash(packed))
}
