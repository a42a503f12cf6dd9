// Package fabric implements the ledger query contract for Hyperledger Fabric networks using the Fabric SDK for Go.
package fabric

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/hyperledger/fabric-sdk-go/pkg/client/channel"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/event"
	ledgerclient "github.com/hyperledger/fabric-sdk-go/pkg/client/ledger"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/resmgmt"
	contextAPI "github.com/hyperledger/fabric-sdk-go/pkg/common/providers/context"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"

	gwconfig "github.com/byzantinelab/gateway/lib/config"
	"github.com/byzantinelab/gateway/lib/ledger"
	"github.com/byzantinelab/gateway/lib/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// lab chaincode functions
const (
	fcnQueryAllLabs = "queryAllLabs"
	fcnCreateLab    = "createLab"
)

// Fabric implements a connection to a Fabric network through the SDK. Clients are created on first use for each
// channel and reused afterwards.
type Fabric struct {
	sdk     *fabsdk.FabricSDK
	conf    gwconfig.FabricConfig
	limiter ratelimit.Limiter // nil when unlimited

	mu      sync.Mutex
	ledgers map[string]*ledgerclient.Client
	events  map[string]*event.Client
	labs    *channel.Client
	res     *resmgmt.Client
}

// New loads the SDK connection profile in conf.ConfigFile and returns a Fabric client acting as conf.User of
// conf.Org.
func New(conf gwconfig.FabricConfig) (*Fabric, error) {
	sdk, err := fabsdk.New(config.FromFile(conf.ConfigFile))
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot load Fabric SDK from %s", conf.ConfigFile)
	}

	f := &Fabric{
		sdk:     sdk,
		conf:    conf,
		ledgers: make(map[string]*ledgerclient.Client),
		events:  make(map[string]*event.Client),
	}

	if conf.QueryRate > 0 {
		f.limiter = ratelimit.New(conf.QueryRate)
	}

	log.Logger.Infof("Fabric SDK loaded from %s as %s@%s", conf.ConfigFile, conf.User, conf.Org)

	return f, nil
}

// Close releases the SDK resources.
func (f *Fabric) Close() {
	f.sdk.Close()
}

// GetChannelInfo returns the current configuration of the channel: its orderers and anchor peers.
func (f *Fabric) GetChannelInfo(ctx context.Context, channelID string) ([]byte, error) {
	lc, err := f.ledger(channelID)
	if err != nil {
		return nil, err
	}

	f.take()

	cfg, err := lc.QueryConfig(ledgerclient.WithParentContext(ctx))
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryConfig failed for channel %s", channelID)
	}

	type anchorPeer struct {
		Org  string `json:"org"`
		Host string `json:"host"`
		Port int32  `json:"port"`
	}

	info := struct {
		ID          string       `json:"id"`
		Orderers    []string     `json:"orderers"`
		AnchorPeers []anchorPeer `json:"anchorPeers"`
	}{ID: cfg.ID(), Orderers: cfg.Orderers(), AnchorPeers: []anchorPeer{}}

	for _, ap := range cfg.AnchorPeers() {
		info.AnchorPeers = append(info.AnchorPeers, anchorPeer{Org: ap.Org, Host: ap.Host, Port: ap.Port})
	}

	return json.Marshal(info)
}

// GetPeers returns the peers discovered on the channel.
func (f *Fabric) GetPeers(ctx context.Context, channelID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.take()

	chCtx, err := f.channelProvider(channelID)()
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot get channel context for %s", channelID)
	}

	discovery, err := chCtx.ChannelService().Discovery()
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot get discovery service for %s", channelID)
	}

	peers, err := discovery.GetPeers()
	if err != nil {
		return nil, errors.WithMessagef(err, "GetPeers failed for channel %s", channelID)
	}

	type peerInfo struct {
		URL   string `json:"url"`
		MSPID string `json:"mspid"`
	}

	list := make([]peerInfo, 0, len(peers))
	for _, p := range peers {
		list = append(list, peerInfo{URL: p.URL(), MSPID: p.MSPID()})
	}

	return json.Marshal(list)
}

// GetBlockInfo returns the height and the current and previous block hashes of the channel.
func (f *Fabric) GetBlockInfo(ctx context.Context, channelID string) ([]byte, error) {
	lc, err := f.ledger(channelID)
	if err != nil {
		return nil, err
	}

	f.take()

	resp, err := lc.QueryInfo(ledgerclient.WithParentContext(ctx))
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryInfo failed for channel %s", channelID)
	}

	info := struct {
		Height            uint64 `json:"height"`
		CurrentBlockHash  string `json:"currentBlockHash"`
		PreviousBlockHash string `json:"previousBlockHash"`
		Endorser          string `json:"endorser"`
		Status            int32  `json:"status"`
	}{Endorser: resp.Endorser, Status: resp.Status}

	if resp.BCI != nil {
		info.Height = resp.BCI.Height
		info.CurrentBlockHash = hex.EncodeToString(resp.BCI.CurrentBlockHash)
		info.PreviousBlockHash = hex.EncodeToString(resp.BCI.PreviousBlockHash)
	}

	return json.Marshal(info)
}

// GetBlock returns the JSON rendering of block number of the channel.
func (f *Fabric) GetBlock(ctx context.Context, channelID string, number uint64) ([]byte, error) {
	bj, err := f.block(ctx, channelID, number)
	if err != nil {
		return nil, err
	}

	return json.Marshal(bj)
}

// GetBlockHash returns the hex encoded hash of the block header.
func (f *Fabric) GetBlockHash(ctx context.Context, header ledger.BlockHeader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := ledger.HeaderHash(header)
	if err != nil {
		return nil, errors.WithMessage(err, "cannot hash block header")
	}

	return json.Marshal(struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}{header.Number, hex.EncodeToString(hash)})
}

// GetChaincodes returns the chaincodes instantiated on the channel.
func (f *Fabric) GetChaincodes(ctx context.Context, channelID string) ([]byte, error) {
	rc, err := f.resmgmt()
	if err != nil {
		return nil, err
	}

	f.take()

	resp, err := rc.QueryInstantiatedChaincodes(channelID, resmgmt.WithParentContext(ctx))
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryInstantiatedChaincodes failed for channel %s", channelID)
	}

	type chaincode struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Path    string `json:"path"`
	}

	list := make([]chaincode, 0, len(resp.Chaincodes))
	for _, cc := range resp.Chaincodes {
		list = append(list, chaincode{Name: cc.Name, Version: cc.Version, Path: cc.Path})
	}

	return json.Marshal(list)
}

// GetTransactionProposalRate returns the rate of transactions of chaincode over the latest conf.RateBlocks blocks of
// the channel.
func (f *Fabric) GetTransactionProposalRate(ctx context.Context, channelID, chaincode string) ([]byte, error) {
	lc, err := f.ledger(channelID)
	if err != nil {
		return nil, err
	}

	f.take()

	info, err := lc.QueryInfo(ledgerclient.WithParentContext(ctx))
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryInfo failed for channel %s", channelID)
	}

	if info.BCI == nil || info.BCI.Height == 0 {
		return json.Marshal(computeRate(channelID, chaincode, 0, nil))
	}

	n := uint64(f.conf.RateBlocks)
	if n == 0 || n > info.BCI.Height {
		n = info.BCI.Height
	}

	var txs []txHeader

	for num := info.BCI.Height - n; num < info.BCI.Height; num++ {
		f.take()

		b, err := lc.QueryBlock(num, ledgerclient.WithParentContext(ctx))
		if err != nil {
			return nil, errors.WithMessagef(err, "QueryBlock %d failed for channel %s", num, channelID)
		}

		bt, err := blockTxs(b)
		if err != nil {
			return nil, err
		}

		txs = append(txs, bt...)
	}

	return json.Marshal(computeRate(channelID, chaincode, int(n), txs))
}

// GetAllLabs queries all the lab records from the lab chaincode.
func (f *Fabric) GetAllLabs(ctx context.Context) ([]byte, error) {
	cc, err := f.labClient()
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	f.take()

	resp, err := cc.Query(channel.Request{ChaincodeID: f.conf.LabChaincode, Fcn: fcnQueryAllLabs})
	if err != nil {
		return nil, errors.WithMessagef(err, "%s failed on chaincode %s", fcnQueryAllLabs, f.conf.LabChaincode)
	}

	return resp.Payload, nil
}

// CreateLab submits a new lab record to the lab chaincode and waits for it to be committed.
func (f *Fabric) CreateLab(ctx context.Context, lab ledger.Lab) ([]byte, error) {
	cc, err := f.labClient()
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	args := lab.Args()
	req := channel.Request{ChaincodeID: f.conf.LabChaincode, Fcn: fcnCreateLab, Args: make([][]byte, len(args))}

	for i, a := range args {
		req.Args[i] = []byte(a)
	}

	resp, err := cc.Execute(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s failed on chaincode %s", fcnCreateLab, f.conf.LabChaincode)
	}

	return json.Marshal(struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	}{string(resp.TransactionID), resp.TxValidationCode.String()})
}

// BlockEvents registers for the blocks committed on the channel. The registration is removed when ctx is done.
func (f *Fabric) BlockEvents(ctx context.Context, channelID string) (<-chan ledger.BlockEvent, error) {
	ec, err := f.eventClient(channelID)
	if err != nil {
		return nil, err
	}

	reg, blocks, err := ec.RegisterBlockEvent()
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot register for block events on %s", channelID)
	}

	out := make(chan ledger.BlockEvent)

	go func() {
		defer close(out)
		defer ec.Unregister(reg)

		for {
			select {
			case <-ctx.Done():
				return
			case be, ok := <-blocks:
				if !ok {
					return
				}

				bj, err := decodeBlock(be.Block)
				if err != nil {
					log.Logger.Warnf("[%s] Cannot decode block event from %s: %v", channelID, be.SourceURL, err)

					continue
				}

				ev := ledger.BlockEvent{
					Channel: channelID,
					Number:  be.Block.Header.Number,
					Hash:    bj.Header.Hash,
					TxCount: len(bj.Data.Data),
					Source:  be.SourceURL,
				}

				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *Fabric) block(ctx context.Context, channelID string, number uint64) (*blockJSON, error) {
	lc, err := f.ledger(channelID)
	if err != nil {
		return nil, err
	}

	f.take()

	b, err := lc.QueryBlock(number, ledgerclient.WithParentContext(ctx))
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryBlock %d failed for channel %s", number, channelID)
	}

	return decodeBlock(b)
}

// take blocks until the rate limiter allows a new ledger query.
func (f *Fabric) take() {
	if f.limiter != nil {
		f.limiter.Take()
	}
}

func (f *Fabric) channelProvider(channelID string) contextAPI.ChannelProvider {
	return f.sdk.ChannelContext(channelID, fabsdk.WithUser(f.conf.User), fabsdk.WithOrg(f.conf.Org))
}

func (f *Fabric) ledger(channelID string) (*ledgerclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lc, ok := f.ledgers[channelID]; ok {
		return lc, nil
	}

	lc, err := ledgerclient.New(f.channelProvider(channelID))
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot create ledger client for %s", channelID)
	}

	f.ledgers[channelID] = lc

	return lc, nil
}

func (f *Fabric) eventClient(channelID string) (*event.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ec, ok := f.events[channelID]; ok {
		return ec, nil
	}

	ec, err := event.New(f.channelProvider(channelID), event.WithBlockEvents())
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot create event client for %s", channelID)
	}

	f.events[channelID] = ec

	return ec, nil
}

func (f *Fabric) labClient() (*channel.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.labs != nil {
		return f.labs, nil
	}

	cc, err := channel.New(f.channelProvider(f.conf.LabChannel))
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot create channel client for %s", f.conf.LabChannel)
	}

	f.labs = cc

	return cc, nil
}

func (f *Fabric) resmgmt() (*resmgmt.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.res != nil {
		return f.res, nil
	}

	rc, err := resmgmt.New(f.sdk.Context(fabsdk.WithUser(f.conf.User), fabsdk.WithOrg(f.conf.Org)))
	if err != nil {
		return nil, errors.WithMessage(err, "cannot create resource management client")
	}

	f.res = rc

	return rc, nil
}
