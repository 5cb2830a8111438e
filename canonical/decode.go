package canonical

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
)

// Unmarshal decodes DAG-CBOR bytes into the intermediate form.
//
// Input must already be canonical: decoding then re-encoding has to reproduce b
// exactly, otherwise an error wrapping ErrInvalidEncoding is returned.
func Unmarshal(b []byte) (any, error) {
	var raw interface{}
	if err := cbor.DecodeInto(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	node, err := fromDecoded(raw)
	if err != nil {
		return nil, err
	}
	again, err := Encode(node)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, b) {
		return nil, fmt.Errorf("%w: input is not canonical DAG-CBOR", ErrInvalidEncoding)
	}
	return node, nil
}

// fromDecoded converts the generic values produced by the ipld-cbor decoder.
func fromDecoded(v interface{}) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case string:
		if !utf8.ValidString(val) {
			return nil, fmt.Errorf("%w: text string is not valid UTF-8", ErrInvalidEncoding)
		}
		return val, nil
	case []byte:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint:
		return fromUnsigned(uint64(val))
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return fromUnsigned(val)
	case float32, float64:
		return nil, fmt.Errorf("%w: float %v", ErrUnsupportedValue, val)
	case cid.Cid:
		return val, nil
	case *cid.Cid:
		if val == nil {
			return nil, nil
		}
		return *val, nil
	case []interface{}:
		arr := make([]any, 0, len(val))
		for _, elem := range val {
			n, err := fromDecoded(elem)
			if err != nil {
				return nil, err
			}
			arr = append(arr, n)
		}
		return arr, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%w: map key is not valid UTF-8", ErrInvalidEncoding)
			}
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		m := NewMap()
		for _, k := range keys {
			n, err := fromDecoded(val[k])
			if err != nil {
				return nil, err
			}
			m.Put(k, n)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unexpected decoded type %T", ErrInvalidEncoding, v)
	}
}

func fromUnsigned(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: integer %d out of range", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}
