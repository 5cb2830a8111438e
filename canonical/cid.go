package canonical

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var cidBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: multihash.SHA2_256, MhLength: 0}

// CIDForBytes computes the content address of already-encoded DAG-CBOR bytes.
func CIDForBytes(b []byte) (cid.Cid, error) {
	return cidBuilder.Sum(b)
}

// CID canonically encodes v and returns its content address along with the encoded
// bytes, which are what a caller should persist or sign.
func CID(v any) (cid.Cid, []byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return cid.Undef, nil, err
	}
	c, err := CIDForBytes(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	return c, b, nil
}
