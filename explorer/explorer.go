// Package explorer implements the block explorer feed. The explorer subscribes to the blocks committed on every
// configured channel and publishes a "block" event on the notification bus for each of them.
package explorer

import (
	"context"
	"fmt"

	"github.com/byzantinelab/gateway/lib/ledger"
	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/notify"
)

// Publisher receives the events produced by the explorer (see notify.Hub).
type Publisher interface {
	Publish(ev notify.Event)
}

// Explorer implements the explorer feed.
type Explorer struct {
	src      ledger.BlockSource
	pub      Publisher
	channels []string
}

// New instantiates a new explorer feed for channels.
func New(src ledger.BlockSource, pub Publisher, channels []string) *Explorer {
	return &Explorer{src: src, pub: pub, channels: channels}
}

// Explore starts a go routine for each channel. The returned channel receives a single message once all of them have
// ended, either because ctx is done or because their subscription was closed by the ledger.
func (e *Explorer) Explore(ctx context.Context) chan string {
	ret := make(chan string, 1)
	// channel to wait for channel explorers
	w := make(chan string, len(e.channels))

	for _, ch := range e.channels {
		e.ExploreChannel(ctx, ch, w)
	}

	go func() {
		for i := 1; i < len(e.channels)+1; i++ {
			log.Logger.Infof("Explore, channel %d/%d returned: %s", i, len(e.channels), <-w)
		}
		ret <- "Done!"
	}()

	return ret
}

// ExploreChannel subscribes to the blocks of channel ch and publishes them until ctx is done. When the routine ends it
// reports via ret. A failed subscription is reported immediately.
func (e *Explorer) ExploreChannel(ctx context.Context, ch string, ret chan string) {
	blocks, err := e.src.BlockEvents(ctx, ch)
	if err != nil {
		log.Logger.Errorf("[%s] Cannot subscribe to block events: %v", ch, err)
		ret <- fmt.Sprintf("[%s] Done! err:%v", ch, err)

		return
	}

	log.Logger.Infof("[%s] Exploring blocks...", ch)

	go func() {
		var (
			last uint64
			seen bool
			n    int
		)

		defer func() {
			ret <- fmt.Sprintf("[%s] Done! blocks:%d", ch, n)
		}()

		for b := range blocks {
			if seen && b.Number != last+1 {
				log.Logger.Warnf("[%s] Block %d received after block %d", ch, b.Number, last)
			}

			last, seen = b.Number, true
			n++

			log.Logger.Debugf("[%s] Block %d hash:%s txs:%d", ch, b.Number, b.Hash, b.TxCount)

			e.pub.Publish(notify.Event{
				Type:    notify.TypeBlock,
				Channel: ch,
				Data:    blockData(b),
			})
		}
	}()
}

func blockData(b ledger.BlockEvent) map[string]interface{} {
	d := map[string]interface{}{
		"number":  b.Number,
		"hash":    b.Hash,
		"txCount": b.TxCount,
	}

	if b.Source != "" {
		d["source"] = b.Source
	}

	return d
}
