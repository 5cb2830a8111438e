package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

var ErrInvalidDoc = errors.New("invalid DID document")

// DocVerificationMethod is a single key entry. ID is either a bare fragment ("#atproto")
// or fully qualified ("did:plc:abc#atproto").
type DocVerificationMethod struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type"`
	Controller         string  `json:"controller,omitempty"`
	PublicKeyMultibase *string `json:"publicKeyMultibase,omitempty"`
}

type DocService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Doc is a resolved DID document, with the fields relevant to atproto.
//
// A nil AlsoKnownAs or VerificationMethod means the field was absent. Nothing in this
// package modifies a Doc once constructed.
type Doc struct {
	ID                 string                  `json:"id"`
	AlsoKnownAs        []string                `json:"alsoKnownAs,omitempty"`
	VerificationMethod []DocVerificationMethod `json:"verificationMethod,omitempty"`
	Service            []DocService            `json:"service,omitempty"`
}

// VerificationMaterial is the key material copied out of a matched verification method.
type VerificationMaterial struct {
	Type               string `json:"type"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// ParseDoc decodes a DID document as returned by a resolver. Unknown fields (@context,
// controller, etc) are ignored, but the document must carry a syntactically valid DID.
func ParseDoc(b []byte) (*Doc, error) {
	var doc Doc
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDoc, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDoc)
	}
	if _, err := syntax.ParseDID(doc.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDoc, err)
	}
	return &doc, nil
}
