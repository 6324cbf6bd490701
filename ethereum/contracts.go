package ethereum

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

var (
	erc20ABI              = mustLoadABI("abi/ERC20.json")
	tokenMessengerABI     = mustLoadABI("abi/TokenMessenger.json")
	messageTransmitterABI = mustLoadABI("abi/MessageTransmitter.json")

	messageSent = messageTransmitterABI.Events["MessageSent"]
)

func mustLoadABI(path string) abi.ABI {
	raw, err := abiFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("unable to read %s: %v", path, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("unable to parse %s: %v", path, err))
	}
	return parsed
}
