package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const originNFTABIJSON = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"referralCode","type":"string"}],"outputs":[]},
	{"type":"function","name":"addressToTokenId","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getReferralCode","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}
	]}
]`

const repManagerABIJSON = `[
	{"type":"function","name":"linkDiscord","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"discordId","type":"string"}],"outputs":[]},
	{"type":"function","name":"creditRep","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"reason","type":"string"}],"outputs":[]},
	{"type":"function","name":"registerReferral","stateMutability":"nonpayable","inputs":[{"name":"referred","type":"address"},{"name":"referrer","type":"address"}],"outputs":[]}
]`

var (
	originNFTABI  = mustParseABI("OriginNFT", originNFTABIJSON)
	repManagerABI = mustParseABI("RepManager", repManagerABIJSON)

	// Transfer(address,address,uint256)
	transferEventID = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return parsed
}
