package session

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/product"
)

// Report and product payloads are stored as CBOR blobs. Times are written
// as RFC 3339 strings with nanoseconds so they survive a round trip intact.
var (
	blobEnc cbor.EncMode
	blobDec cbor.DecMode
)

func init() {
	var err error
	blobEnc, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	blobDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// EncodeReport serializes report data. A nil report encodes to nil.
func EncodeReport(r climate.ReportData) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	env, err := climate.Wrap(r)
	if err != nil {
		return nil, err
	}
	b, err := blobEnc.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("session: encode report: %w", err)
	}
	return b, nil
}

// DecodeReport restores report data. An empty blob decodes to nil.
func DecodeReport(b []byte) (climate.ReportData, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var env climate.ReportEnvelope
	if err := blobDec.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("session: decode report: %w", err)
	}
	return env.Report()
}

// EncodeProdData serializes product data. nil encodes to nil.
func EncodeProdData(pd *product.ProdData) ([]byte, error) {
	if pd == nil {
		return nil, nil
	}
	b, err := blobEnc.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("session: encode product data: %w", err)
	}
	return b, nil
}

// DecodeProdData restores product data. An empty blob decodes to nil.
func DecodeProdData(b []byte) (*product.ProdData, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var pd product.ProdData
	if err := blobDec.Unmarshal(b, &pd); err != nil {
		return nil, fmt.Errorf("session: decode product data: %w", err)
	}
	return &pd, nil
}

func encodeJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("session: encode json: %w", err)
	}
	return b, nil
}

func decodeJSON(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("session: decode json: %w", err)
	}
	return nil
}
