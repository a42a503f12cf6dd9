package gateway

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/byzantinelab/gateway/lib/ledger"
	"github.com/byzantinelab/gateway/lib/notify"
)

// Messages replied when required parameters are missing.
const (
	msgChannelID   = "You must supply a `channelid` parameter and value."
	msgBlock       = "You must supply both `channelid` and `blocknumber` parameters (and values)."
	msgBlockHash   = "You must supply values for the `number`, `prevhash`, and `datahash` parameters."
	msgConfigBlock = "You must supply a value for both the `channelid` and `blocknumber` parameters"
	msgTxRate      = "You must supply a value for both the `channelid` and `chaincode` parameters"
	msgState       = "You must supply a `state` query parameter and value."
	msgLab         = "You must supply values for the `dateTime`, `gender`, `testType`, `age`, `result`, `city`, " +
		"`county`, and `state` parameters."
)

// call runs an operation once the request parameters are valid.
type call func(ctx context.Context) ([]byte, error)

// dispatch decodes the request parameters into req, checks the required ones are present and replies the result of
// op. Failing requests never reach op.
func dispatch(rw http.ResponseWriter, r *http.Request, req interface{}, msg string, required []string, op call) {
	var (
		payload []byte
		err     error
	)

	defer func() {
		reply(rw, r, payload, err)
	}()

	params, err := decodeParams(r, req)
	if err != nil {
		return
	}

	if !requireAll(params, required...) {
		err = &ValidationError{Msg: msg, Missing: missingParams(params, required...)}

		return
	}

	payload, err = op(r.Context())
}

// allLabsHandler replies every lab record.
func (g *Gateway) allLabsHandler(rw http.ResponseWriter, r *http.Request) {
	dispatch(rw, r, nil, "", nil, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetAllLabs(ctx))
	})
}

// byStateHandler replies the lab records whose state matches the state query parameter, ignoring case.
func (g *Gateway) byStateHandler(rw http.ResponseWriter, r *http.Request) {
	var req stateReq

	dispatch(rw, r, &req, msgState, []string{"state"}, func(ctx context.Context) ([]byte, error) {
		labs, err := backend(g.lg.GetAllLabs(ctx))
		if err != nil {
			return nil, err
		}

		return filterByState(labs, req.State)
	})
}

// filterByState returns the JSON array of the records in labs with Record.state equal to state, ignoring case.
func filterByState(labs []byte, state string) ([]byte, error) {
	var records []stdjson.RawMessage
	if err := json.Unmarshal(labs, &records); err != nil {
		return nil, &BackendError{Err: errors.WithMessage(err, "lab records are not a JSON array")}
	}

	data := make([]stdjson.RawMessage, 0, len(records))

	for _, rec := range records {
		s := json.Get(rec, "Record", "state")
		if s.LastError() != nil {
			continue
		}

		if strings.EqualFold(s.ToString(), state) {
			data = append(data, rec)
		}
	}

	return json.Marshal(data)
}

// createLabHandler submits a new lab record and announces it on the bus.
func (g *Gateway) createLabHandler(rw http.ResponseWriter, r *http.Request) {
	var lab ledger.Lab

	required := []string{"dateTime", "gender", "testType", "age", "result", "city", "county", "state"}

	dispatch(rw, r, &lab, msgLab, required, func(ctx context.Context) ([]byte, error) {
		res, err := backend(g.lg.CreateLab(ctx, lab))
		if err != nil {
			return nil, err
		}

		g.bus.Publish(notify.Event{Type: notify.TypeLabCreated, Channel: g.labChannel, Data: lab})

		return res, nil
	})
}

// channelHandler replies the channel configuration.
func (g *Gateway) channelHandler(rw http.ResponseWriter, r *http.Request) {
	var req channelReq

	dispatch(rw, r, &req, msgChannelID, []string{"channelid"}, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetChannelInfo(ctx, req.ChannelID))
	})
}

// peersHandler replies the peers of the channel.
func (g *Gateway) peersHandler(rw http.ResponseWriter, r *http.Request) {
	var req channelReq

	dispatch(rw, r, &req, msgChannelID, []string{"channelid"}, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetPeers(ctx, req.ChannelID))
	})
}

func (g *Gateway) blockInfoHandler(rw http.ResponseWriter, r *http.Request) {
	var req channelReq

	dispatch(rw, r, &req, msgChannelID, []string{"channelid"}, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetBlockInfo(ctx, req.ChannelID))
	})
}

// blockHandler replies the block requested as returned by the ledger.
func (g *Gateway) blockHandler(rw http.ResponseWriter, r *http.Request) {
	var req blockReq

	dispatch(rw, r, &req, msgBlock, []string{"channelid", "blocknumber"}, func(ctx context.Context) ([]byte, error) {
		n, err := parseUint("blocknumber", req.BlockNumber)
		if err != nil {
			return nil, err
		}

		return backend(g.lg.GetBlock(ctx, req.ChannelID, n))
	})
}

// blockHashHandler replies the hash of the block header given.
func (g *Gateway) blockHashHandler(rw http.ResponseWriter, r *http.Request) {
	var req blockHashReq

	required := []string{"number", "prevhash", "datahash"}

	dispatch(rw, r, &req, msgBlockHash, required, func(ctx context.Context) ([]byte, error) {
		var (
			h   ledger.BlockHeader
			err error
		)

		if h.Number, err = parseUint("number", req.Number); err != nil {
			return nil, err
		}

		if h.PreviousHash, err = parseHex("prevhash", req.PrevHash); err != nil {
			return nil, err
		}

		if h.DataHash, err = parseHex("datahash", req.DataHash); err != nil {
			return nil, err
		}

		return backend(g.lg.GetBlockHash(ctx, h))
	})
}

func (g *Gateway) chaincodesHandler(rw http.ResponseWriter, r *http.Request) {
	var req channelReq

	dispatch(rw, r, &req, msgChannelID, []string{"channelid"}, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetChaincodes(ctx, req.ChannelID))
	})
}

// channelConfigHandler replies the current config block of the channel, found through the metadata of the block
// given.
func (g *Gateway) channelConfigHandler(rw http.ResponseWriter, r *http.Request) {
	var req blockReq

	dispatch(rw, r, &req, msgConfigBlock, []string{"channelid", "blocknumber"}, func(ctx context.Context) ([]byte, error) {
		n, err := parseUint("blocknumber", req.BlockNumber)
		if err != nil {
			return nil, err
		}

		return g.resolveConfigBlock(ctx, req.ChannelID, n)
	})
}

// txRateHandler replies the transaction proposal rate of a chaincode.
func (g *Gateway) txRateHandler(rw http.ResponseWriter, r *http.Request) {
	var req txRateReq

	dispatch(rw, r, &req, msgTxRate, []string{"channelid", "chaincode"}, func(ctx context.Context) ([]byte, error) {
		return backend(g.lg.GetTransactionProposalRate(ctx, req.ChannelID, req.Chaincode))
	})
}
