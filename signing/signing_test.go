package signing

import (
	"testing"

	"github.com/bluesky-social/indigo/atproto/atcrypto"
	"github.com/pdscore/go-pdscore/canonical"
	"github.com/pdscore/go-pdscore/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commit struct {
	DID     string  `json:"did"`
	Version int64   `json:"version"`
	Rev     string  `json:"rev"`
	Prev    *string `json:"prev"`
}

func testDoc(t *testing.T, pub atcrypto.PublicKey) *identity.Doc {
	t.Helper()
	mb := pub.Multibase()
	return &identity.Doc{
		ID:          "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
		AlsoKnownAs: []string{"at://alice.test"},
		VerificationMethod: []identity.DocVerificationMethod{
			{ID: "#atproto", Type: "Multikey", PublicKeyMultibase: &mb},
		},
	}
}

func TestSignVerify(t *testing.T) {
	assert := assert.New(t)

	priv, err := atcrypto.GeneratePrivateKeyK256()
	require.NoError(t, err)
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	doc := testDoc(t, pub)

	rec := commit{DID: doc.ID, Version: 3, Rev: "3jzfcijpj2z2a"}
	sig, err := Sign(priv, rec)
	require.NoError(t, err)
	assert.NotContains(sig, "=")

	assert.NoError(Verify(doc, "atproto", rec, sig))

	// same logical content through a map verifies too
	asMap := map[string]any{"rev": "3jzfcijpj2z2a", "prev": nil, "version": 3, "did": doc.ID}
	assert.NoError(Verify(doc, "atproto", asMap, sig))

	tampered := rec
	tampered.Version = 4
	assert.ErrorIs(Verify(doc, "atproto", tampered, sig), atcrypto.ErrInvalidSignature)

	err = Verify(doc, "other", rec, sig)
	assert.ErrorIs(err, ErrKeyNotFound)
}

func TestSignP256(t *testing.T) {
	priv, err := atcrypto.GeneratePrivateKeyP256()
	require.NoError(t, err)
	pub, err := priv.PublicKey()
	require.NoError(t, err)

	b, err := canonical.Marshal(map[string]string{"hello": "world"})
	require.NoError(t, err)
	sig, err := SignBytes(priv, b)
	require.NoError(t, err)
	assert.NoError(t, VerifyBytes(pub, b, sig))
}

func TestVerifyBadEncodings(t *testing.T) {
	assert := assert.New(t)

	priv, err := atcrypto.GeneratePrivateKeyK256()
	require.NoError(t, err)
	pub, err := priv.PublicKey()
	require.NoError(t, err)

	b := []byte{0xa0}
	sig, err := SignBytes(priv, b)
	require.NoError(t, err)

	assert.Error(VerifyBytes(pub, b, ""))
	assert.Error(VerifyBytes(pub, b, sig+"="))
	assert.Error(VerifyBytes(pub, b, sig[:10]+"\n"+sig[10:]))
	assert.NoError(VerifyBytes(pub, b, sig))
}

func TestVerifyKeylessMethod(t *testing.T) {
	doc := &identity.Doc{
		ID: "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
		VerificationMethod: []identity.DocVerificationMethod{
			{ID: "#atproto", Type: "Multikey"},
		},
	}
	err := Verify(doc, "atproto", map[string]string{}, "c2ln")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSignUnencodable(t *testing.T) {
	priv, err := atcrypto.GeneratePrivateKeyK256()
	require.NoError(t, err)
	_, err = Sign(priv, map[string]any{"f": 1.5})
	assert.ErrorIs(t, err, canonical.ErrUnsupportedValue)
}
