package gateway

import (
	"encoding/hex"
	stdjson "encoding/json"
	"io/ioutil"
	"mime"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/byzantinelab/gateway/lib/log"
)

// body of requests bigger than this are rejected
const maxBody = 1 << 20

var jsonNumbers = jsoniter.Config{UseNumber: true}.Froze()

// Parameter sets of the routes.
type channelReq struct {
	ChannelID string `json:"channelid"`
}

type blockReq struct {
	ChannelID   string `json:"channelid"`
	BlockNumber string `json:"blocknumber"`
}

type blockHashReq struct {
	Number   string `json:"number"`
	PrevHash string `json:"prevhash"`
	DataHash string `json:"datahash"`
}

type txRateReq struct {
	ChannelID string `json:"channelid"`
	Chaincode string `json:"chaincode"`
}

type stateReq struct {
	State string `json:"state"`
}

// decodeParams reads the request parameters into dst and returns them coerced to strings, keyed by name. GET
// requests are read from the query string, others from a JSON or form encoded body. Unknown names and values that are
// not scalars are rejected. A nil dst takes no parameters and ignores whatever the request carries.
func decodeParams(r *http.Request, dst interface{}) (map[string]string, error) {
	if dst == nil {
		return map[string]string{}, nil
	}

	raw, err := rawParams(r)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		TagName:     "json",
		Result:      dst,
	})
	if err != nil {
		return nil, err
	}

	if err = dec.Decode(raw); err != nil {
		return nil, &ValidationError{Msg: "Invalid request parameters: " + err.Error()}
	}

	// back to a flat map keyed by parameter name
	b, err := json.Marshal(dst)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if err = json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}

	return cast.ToStringMapStringE(fields)
}

func rawParams(r *http.Request) (map[string]interface{}, error) {
	raw := make(map[string]interface{})

	if r.Method == http.MethodGet {
		for k, v := range r.URL.Query() {
			raw[k] = v[0]
		}

		return raw, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if ct == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
		if err := r.ParseForm(); err != nil {
			return nil, errors.WithMessage(err, "Cannot parse form body")
		}

		for k, v := range r.PostForm {
			raw[k] = v[0]
		}

		return raw, nil
	}

	body, err := ioutil.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		return nil, errors.WithMessage(err, "Cannot read request body")
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return raw, nil
	}

	if err = jsonNumbers.Unmarshal(body, &raw); err != nil {
		return nil, errors.New("Request body must be a JSON object")
	}

	for k, v := range raw {
		if n, ok := v.(stdjson.Number); ok {
			raw[k] = n.String()
		}
	}

	return raw, nil
}

// requireAll reports whether every name has a non empty value in params.
func requireAll(params map[string]string, names ...string) bool {
	return len(missingParams(params, names...)) == 0
}

// missingParams returns, in order, the names without a non empty value in params.
func missingParams(params map[string]string, names ...string) []string {
	var missing []string

	for _, n := range names {
		v, ok := params[n]
		log.Logger.Debugf("Validating required parameter: %s with value of: %s", n, v)

		if !ok || len(v) == 0 {
			missing = append(missing, n)
		}
	}

	return missing
}

// parseUint parses the unsigned integer value of parameter name.
func parseUint(name, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, &ValidationError{Msg: "The `" + name + "` parameter must be an unsigned integer."}
	}

	return n, nil
}

// parseHex decodes the hex value of parameter name. An optional 0x prefix is allowed.
func parseHex(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X"))
	if err != nil {
		return nil, &ValidationError{Msg: "The `" + name + "` parameter must be hex encoded."}
	}

	return b, nil
}
