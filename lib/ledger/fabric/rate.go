package fabric

import (
	"time"
)

// proposalRate is the transaction proposal rate of a chaincode measured over the latest blocks of a channel.
type proposalRate struct {
	Channel      string  `json:"channel"`
	Chaincode    string  `json:"chaincode"`
	Blocks       int     `json:"blocks"`
	Transactions int     `json:"transactions"`
	Seconds      float64 `json:"seconds"`
	Rate         float64 `json:"rate"` // transactions per second
}

// computeRate counts the endorser transactions of chaincode in txs and divides them by the time elapsed between the
// first and last of them. Spans shorter than a second count as one second.
func computeRate(channelID, chaincode string, blocks int, txs []txHeader) proposalRate {
	r := proposalRate{Channel: channelID, Chaincode: chaincode, Blocks: blocks}

	var first, last time.Time

	for _, tx := range txs {
		if tx.Chaincode != chaincode || tx.Timestamp.IsZero() {
			continue
		}

		r.Transactions++

		if first.IsZero() || tx.Timestamp.Before(first) {
			first = tx.Timestamp
		}

		if tx.Timestamp.After(last) {
			last = tx.Timestamp
		}
	}

	if r.Transactions == 0 {
		return r
	}

	r.Seconds = last.Sub(first).Seconds()

	span := r.Seconds
	if span < 1 {
		span = 1
	}

	r.Rate = float64(r.Transactions) / span

	return r
}
