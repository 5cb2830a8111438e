package signing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/atcrypto"
	"github.com/pdscore/go-pdscore/canonical"
	"github.com/pdscore/go-pdscore/identity"
)

var ErrKeyNotFound = errors.New("no usable verification key in DID document")

// SignBytes signs already-canonical bytes, returning an unpadded base64url signature.
func SignBytes(priv atcrypto.PrivateKey, b []byte) (string, error) {
	sig, err := priv.HashAndSign(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Sign canonically encodes record and signs the resulting bytes.
func Sign(priv atcrypto.PrivateKey, record any) (string, error) {
	b, err := canonical.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record for signing: %w", err)
	}
	return SignBytes(priv, b)
}

// VerifyBytes checks sig over b. Returns atcrypto.ErrInvalidSignature on mismatch.
func VerifyBytes(pub atcrypto.PublicKey, b []byte, sig string) error {
	if sig == "" {
		return fmt.Errorf("can't verify empty signature")
	}

	// .Strict() alone is not strict enough.
	// see https://pkg.go.dev/encoding/base64#Encoding.Strict
	if strings.Contains(sig, "\r") || strings.Contains(sig, "\n") {
		return fmt.Errorf("invalid signature encoding (CRLF)")
	}

	sigBytes, err := base64.RawURLEncoding.Strict().DecodeString(sig)
	if err != nil {
		return err
	}
	return pub.HashAndVerify(b, sigBytes)
}

// Verify checks a signature over the canonical encoding of record, using the key
// named keyID in doc.
func Verify(doc *identity.Doc, keyID string, record any, sig string) error {
	vm, ok := identity.VerificationMaterialFor(doc, keyID)
	if !ok {
		return fmt.Errorf("%w: %s#%s", ErrKeyNotFound, identity.DID(doc), keyID)
	}
	pub, err := vm.PublicKey()
	if err != nil {
		return err
	}
	b, err := canonical.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record for verification: %w", err)
	}
	return VerifyBytes(pub, b, sig)
}
