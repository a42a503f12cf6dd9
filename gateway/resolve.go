package gateway

import (
	"context"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// resolveConfigBlock returns the config block of channel ch as pointed to by the metadata of block number. The
// block fetched first is only used to read the pointer.
func (g *Gateway) resolveConfigBlock(ctx context.Context, ch string, number uint64) ([]byte, error) {
	seed, err := backend(g.lg.GetBlock(ctx, ch, number))
	if err != nil {
		return nil, err
	}

	idx, err := lastConfigIndex(seed)
	if err != nil {
		return nil, err
	}

	return backend(g.lg.GetBlock(ctx, ch, idx))
}

// lastConfigIndex reads the config block number at metadata.metadata[1].value.index of a JSON block. The index may
// be a number or a numeric string.
func lastConfigIndex(block []byte) (uint64, error) {
	v := json.Get(block, "metadata", "metadata", 1, "value", "index")
	if err := v.LastError(); err != nil {
		return 0, &ResolutionError{Msg: "cannot find config block index in block metadata", Err: err}
	}

	switch v.ValueType() {
	case jsoniter.NumberValue, jsoniter.StringValue:
	default:
		return 0, &ResolutionError{Msg: "config block index in block metadata is not a number"}
	}

	idx, err := strconv.ParseUint(v.ToString(), 10, 64)
	if err != nil {
		return 0, &ResolutionError{Msg: "config block index in block metadata is not a number", Err: errors.WithStack(err)}
	}

	return idx, nil
}
