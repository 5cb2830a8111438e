package canonical

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// CBOR tag for IPLD links
const cidTag = 42

// Marshal returns the canonical DAG-CBOR encoding of v.
//
// v is first serialized to JSON, then normalized into an ordered intermediate with
// map keys in canonical order, then written as CBOR. Two values that are equal as the
// same Go type always produce identical bytes. On any failure no bytes are returned.
func Marshal(v any) ([]byte, error) {
	node, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return Encode(node)
}

// Encode writes an intermediate node (as produced by Normalize or Unmarshal) as
// DAG-CBOR. Maps are written in their stored order.
func Encode(node any) ([]byte, error) {
	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	if err := writeNode(cw, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(cw *cbg.CborWriter, node any) error {
	switch v := node.(type) {
	case nil:
		_, err := cw.Write(cbg.CborNull)
		return err
	case bool:
		if v {
			_, err := cw.Write(cbg.CborBoolTrue)
			return err
		}
		_, err := cw.Write(cbg.CborBoolFalse)
		return err
	case int64:
		if v >= 0 {
			return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(v))
		}
		return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, uint64(-1-v))
	case string:
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: invalid UTF-8 in string", ErrUnsupportedValue)
		}
		if err := cw.WriteMajorTypeHeader(cbg.MajTextString, uint64(len(v))); err != nil {
			return err
		}
		_, err := io.WriteString(cw, v)
		return err
	case []byte:
		if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(v))); err != nil {
			return err
		}
		_, err := cw.Write(v)
		return err
	case cid.Cid:
		return writeLink(cw, v)
	case []any:
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(v))); err != nil {
			return err
		}
		for _, elem := range v {
			if err := writeNode(cw, elem); err != nil {
				return err
			}
		}
		return nil
	case *Map:
		if err := cw.WriteMajorTypeHeader(cbg.MajMap, uint64(v.Len())); err != nil {
			return err
		}
		var err error
		v.Each(func(key string, value any) {
			if err != nil {
				return
			}
			if err = writeNode(cw, key); err != nil {
				return
			}
			err = writeNode(cw, value)
		})
		return err
	default:
		return fmt.Errorf("%w: unsupported intermediate type %T", ErrUnsupportedValue, node)
	}
}

// links are tag 42 over a byte string holding the binary CID behind a 0x00 multibase
// identity prefix
func writeLink(cw *cbg.CborWriter, c cid.Cid) error {
	if !c.Defined() {
		return fmt.Errorf("%w: undefined CID", ErrUnsupportedValue)
	}
	raw := c.Bytes()
	if err := cw.WriteMajorTypeHeader(cbg.MajTag, cidTag); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(raw)+1)); err != nil {
		return err
	}
	if _, err := cw.Write([]byte{0}); err != nil {
		return err
	}
	_, err := cw.Write(raw)
	return err
}
