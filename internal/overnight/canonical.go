package overnight

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/leon-madara/resona-core/internal/records"
)

// canonicalize produces a stable, whitespace-free byte form of a
// UIConfigPlaintext: map keys sorted, no insignificant whitespace. Go's
// encoding/json already sorts map[string]T keys on marshal, so the only
// extra work is re-marshaling through a generic value to strip whitespace
// deterministically and guarantee canon(canon(x)) == canon(x).
func canonicalize(cfg records.UIConfigPlaintext) ([]byte, error) {
	first, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(first, &generic); err != nil {
		return nil, err
	}

	return marshalSorted(generic)
}

// unmarshalPlaintext parses canonical (or any equivalent) JSON bytes back
// into a UIConfigPlaintext, used by change detection to read a decrypted
// prior config.
func unmarshalPlaintext(data []byte) (records.UIConfigPlaintext, error) {
	var plain records.UIConfigPlaintext
	if err := json.Unmarshal(data, &plain); err != nil {
		return records.UIConfigPlaintext{}, err
	}
	return plain, nil
}

// marshalSorted re-encodes a decoded JSON value with object keys in sorted
// order and no whitespace, recursively, independent of map iteration order.
func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}
