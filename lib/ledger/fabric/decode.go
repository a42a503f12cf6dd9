package fabric

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang/protobuf/proto"
	cb "github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/byzantinelab/gateway/lib/ledger"
)

// blockJSON is the JSON rendering of a block served to clients. The last config block number is found at
// metadata.metadata[1].value.index.
type blockJSON struct {
	Header   headerJSON   `json:"header"`
	Data     dataJSON     `json:"data"`
	Metadata metadataJSON `json:"metadata"`
}

type headerJSON struct {
	Number       string `json:"number"`
	PreviousHash string `json:"previous_hash"`
	DataHash     string `json:"data_hash"`
	Hash         string `json:"hash"`
}

type dataJSON struct {
	Data []txJSON `json:"data"`
}

type txJSON struct {
	TxID      string `json:"tx_id"`
	ChannelID string `json:"channel_id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
	Chaincode string `json:"chaincode,omitempty"`
}

type metadataJSON struct {
	Metadata []metadataEntry `json:"metadata"`
}

type metadataEntry struct {
	Value      interface{} `json:"value"`
	Signatures int         `json:"signatures"`
}

type lastConfigJSON struct {
	Index string `json:"index"`
}

// txHeader holds the channel header fields of a transaction envelope.
type txHeader struct {
	TxID      string
	ChannelID string
	Type      cb.HeaderType
	Timestamp time.Time
	Chaincode string // only for endorser transactions
}

// decodeBlock converts a ledger block into its JSON rendering.
func decodeBlock(b *cb.Block) (*blockJSON, error) {
	if b == nil || b.Header == nil {
		return nil, ledger.ErrNoBlock
	}

	hash, err := ledger.HeaderHash(ledger.BlockHeader{
		Number:       b.Header.Number,
		PreviousHash: b.Header.PreviousHash,
		DataHash:     b.Header.DataHash,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "cannot hash block header")
	}

	bj := &blockJSON{
		Header: headerJSON{
			Number:       strconv.FormatUint(b.Header.Number, 10),
			PreviousHash: hex.EncodeToString(b.Header.PreviousHash),
			DataHash:     hex.EncodeToString(b.Header.DataHash),
			Hash:         hex.EncodeToString(hash),
		},
		Data: dataJSON{Data: []txJSON{}},
	}

	txs, err := blockTxs(b)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		tj := txJSON{TxID: tx.TxID, ChannelID: tx.ChannelID, Type: tx.Type.String(), Chaincode: tx.Chaincode}
		if !tx.Timestamp.IsZero() {
			tj.Timestamp = tx.Timestamp.Format(time.RFC3339Nano)
		}

		bj.Data.Data = append(bj.Data.Data, tj)
	}

	if bj.Metadata.Metadata, err = decodeMetadata(b.Metadata); err != nil {
		return nil, err
	}

	return bj, nil
}

// decodeMetadata renders every metadata slot. LAST_CONFIG is decoded into {index}, TRANSACTIONS_FILTER into the list
// of validation codes and the rest into their hex encoded values.
func decodeMetadata(md *cb.BlockMetadata) ([]metadataEntry, error) {
	if md == nil {
		return []metadataEntry{}, nil
	}

	entries := make([]metadataEntry, 0, len(md.Metadata))

	for i, raw := range md.Metadata {
		if len(raw) == 0 {
			entries = append(entries, metadataEntry{})

			continue
		}

		if i == int(cb.BlockMetadataIndex_TRANSACTIONS_FILTER) {
			codes := make([]int, len(raw))
			for j, c := range raw {
				codes[j] = int(c)
			}

			entries = append(entries, metadataEntry{Value: codes})

			continue
		}

		m := &cb.Metadata{}
		if err := proto.Unmarshal(raw, m); err != nil {
			return nil, errors.Wrapf(ledger.ErrNoMetadata, "slot %d: %v", i, err)
		}

		e := metadataEntry{Value: hex.EncodeToString(m.Value), Signatures: len(m.Signatures)}

		if i == int(cb.BlockMetadataIndex_LAST_CONFIG) {
			lc := &cb.LastConfig{}
			if err := proto.Unmarshal(m.Value, lc); err != nil {
				return nil, errors.Wrapf(ledger.ErrNoMetadata, "last config: %v", err)
			}

			e.Value = lastConfigJSON{Index: strconv.FormatUint(lc.Index, 10)}
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// blockTxs decodes the channel header of every envelope in the block.
func blockTxs(b *cb.Block) ([]txHeader, error) {
	if b.Data == nil {
		return nil, nil
	}

	txs := make([]txHeader, 0, len(b.Data.Data))

	for i, data := range b.Data.Data {
		tx, err := decodeTx(data)
		if err != nil {
			return nil, errors.WithMessagef(err, "block %d tx %d", b.Header.Number, i)
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

func decodeTx(data []byte) (h txHeader, err error) {
	env := &cb.Envelope{}
	if err = proto.Unmarshal(data, env); err != nil {
		return h, errors.Wrap(ledger.ErrBadEnvelope, err.Error())
	}

	payload := &cb.Payload{}
	if err = proto.Unmarshal(env.Payload, payload); err != nil {
		return h, errors.Wrap(ledger.ErrBadEnvelope, err.Error())
	}

	if payload.Header == nil {
		return h, errors.Wrap(ledger.ErrBadEnvelope, "missing payload header")
	}

	chdr := &cb.ChannelHeader{}
	if err = proto.Unmarshal(payload.Header.ChannelHeader, chdr); err != nil {
		return h, errors.Wrap(ledger.ErrBadEnvelope, err.Error())
	}

	h = txHeader{TxID: chdr.TxId, ChannelID: chdr.ChannelId, Type: cb.HeaderType(chdr.Type)}
	if chdr.Timestamp != nil {
		h.Timestamp = time.Unix(chdr.Timestamp.Seconds, int64(chdr.Timestamp.Nanos)).UTC()
	}

	if h.Type == cb.HeaderType_ENDORSER_TRANSACTION && len(chdr.Extension) > 0 {
		ext := &pb.ChaincodeHeaderExtension{}
		if err = proto.Unmarshal(chdr.Extension, ext); err != nil {
			return h, errors.Wrap(ledger.ErrBadEnvelope, err.Error())
		}

		if ext.ChaincodeId != nil {
			h.Chaincode = ext.ChaincodeId.Name
		}
	}

	return h, nil
}
