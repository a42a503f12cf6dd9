// Package ledger defines the query contract the gateway requires from a ledger network. Implementations (see package
// lib/ledger/fabric) own the connections to the network; the gateway only validates parameters, calls these methods
// and serializes what they return.
package ledger

import (
	"context"
	"errors"
)

// Ledger is the set of ledger-derived queries served by the gateway. Every method returns a single payload ready to
// be sent to clients (usually JSON) or an error. Methods must be safe for concurrent use.
type Ledger interface {
	// channel queries
	GetChannelInfo(ctx context.Context, channelID string) ([]byte, error)
	GetPeers(ctx context.Context, channelID string) ([]byte, error)
	GetBlockInfo(ctx context.Context, channelID string) ([]byte, error)
	GetBlock(ctx context.Context, channelID string, number uint64) ([]byte, error)
	GetBlockHash(ctx context.Context, header BlockHeader) ([]byte, error)
	GetChaincodes(ctx context.Context, channelID string) ([]byte, error)
	GetTransactionProposalRate(ctx context.Context, channelID, chaincode string) ([]byte, error)
	// lab records chaincode
	GetAllLabs(ctx context.Context) ([]byte, error)
	CreateLab(ctx context.Context, lab Lab) ([]byte, error)
	Close()
}

// BlockSource streams the blocks committed on a channel. The returned channel is closed when ctx is done or the
// subscription ends.
type BlockSource interface {
	BlockEvents(ctx context.Context, channelID string) (<-chan BlockEvent, error)
}

// BlockEvent is a simplified committed block notification.
type BlockEvent struct {
	Channel string `json:"channel"`
	Number  uint64 `json:"number"`
	Hash    string `json:"hash"`
	TxCount int    `json:"txCount"`
	Source  string `json:"source,omitempty"` // peer that delivered the block
}

// BlockHeader holds the fields of a block header that are hashed to obtain the block hash.
type BlockHeader struct {
	Number       uint64
	PreviousHash []byte
	DataHash     []byte
}

// Lab is a lab test record as stored by the lab chaincode.
type Lab struct {
	DateTime string `json:"dateTime"`
	Gender   string `json:"gender"`
	TestType string `json:"testType"`
	Age      string `json:"age"`
	Result   string `json:"result"`
	City     string `json:"city"`
	County   string `json:"county"`
	State    string `json:"state"`
}

// Args returns the lab fields in the order expected by the createLab chaincode function.
func (l Lab) Args() []string {
	return []string{l.DateTime, l.Gender, l.TestType, l.Age, l.Result, l.City, l.County, l.State}
}

// Errors returned by implementations.
var (
	ErrNoBlock     = errors.New("block not found")
	ErrNoMetadata  = errors.New("block does not contain metadata")
	ErrBadEnvelope = errors.New("malformed transaction envelope in block")
)
