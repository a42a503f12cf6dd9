package fabric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeRate(t *testing.T) {
	at := func(s int64) time.Time { return time.Unix(s, 0) }

	var tests = []struct {
		name  string
		txs   []txHeader
		count int
		secs  float64
		rate  float64
	}{
		{"none", nil, 0, 0, 0},
		{"other chaincode", []txHeader{{Chaincode: "other", Timestamp: at(10)}}, 0, 0, 0},
		{"single", []txHeader{{Chaincode: "lab", Timestamp: at(10)}}, 1, 0, 1},
		{"spread", []txHeader{
			{Chaincode: "lab", Timestamp: at(30)},
			{Chaincode: "other", Timestamp: at(100)},
			{Chaincode: "lab", Timestamp: at(10)},
			{Chaincode: "lab", Timestamp: at(20)},
			{Chaincode: "lab"}, // no timestamp
		}, 3, 20, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := computeRate("mychannel", "lab", 4, tt.txs)
			assert.Equal(t, "mychannel", r.Channel)
			assert.Equal(t, "lab", r.Chaincode)
			assert.Equal(t, 4, r.Blocks)
			assert.Equal(t, tt.count, r.Transactions)
			assert.InDelta(t, tt.secs, r.Seconds, 1e-9)
			assert.InDelta(t, tt.rate, r.Rate, 1e-9)
		})
	}
}
