package upgradeproxy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const (
	adminSlotLabel          = "plenum.proxy.admin"
	implementationSlotLabel = "plenum.proxy.implementation"
)

// AdminSlot and ImplementationSlot are the proxy's two reserved storage
// locations. Reimplementations must derive them the same way to stay
// compatible with already-populated state.
var (
	AdminSlot          = ReservedSlot(adminSlotLabel)
	ImplementationSlot = ReservedSlot(implementationSlotLabel)
)

// DerivedSlot maps a label to the slot implementations use for their own
// state: keccak256 of the label bytes.
func DerivedSlot(label string) common.Hash {
	return common.BytesToHash(keccak256([]byte(label)))
}

// ReservedSlot is keccak256(label) minus one. The offset takes the slot off
// every natural keccak preimage, so no label an implementation hashes for
// itself can land on a reserved slot.
func ReservedSlot(label string) common.Hash {
	value := new(big.Int).SetBytes(keccak256([]byte(label)))
	value.Sub(value, big.NewInt(1))
	return common.BigToHash(value)
}

func keccak256(data []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return hash.Sum(nil)
}
