package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/atcrypto"
)

const (
	handlePrefix = "at://"

	// key id of the atproto repo signing key
	AtprotoKeyID = "atproto"
	// service id of the account's PDS
	AtprotoPDSServiceID = "atproto_pds"
)

var ErrUnsupportedKeyType = errors.New("unsupported verification method type")

// DID returns the document's identifier verbatim.
func DID(doc *Doc) string {
	return doc.ID
}

// Handle returns the first alsoKnownAs entry with an "at://" prefix, prefix removed.
//
// Only the first qualifying entry counts, even when later entries would also qualify.
func Handle(doc *Doc) (string, bool) {
	for _, aka := range doc.AlsoKnownAs {
		if strings.HasPrefix(aka, handlePrefix) {
			return aka[len(handlePrefix):], true
		}
	}
	return "", false
}

// matchesFragment reports whether id refers to fragment within the document for did,
// in either bare ("#frag") or fully-qualified ("did#frag") form.
func matchesFragment(id, did, fragment string) bool {
	return id == "#"+fragment || id == did+"#"+fragment
}

// VerificationMaterialFor looks up the verification method named by keyID.
//
// The first method with a matching id decides the result: if it has no
// publicKeyMultibase, no material is returned, even if a later duplicate has one.
func VerificationMaterialFor(doc *Doc, keyID string) (*VerificationMaterial, bool) {
	did := DID(doc)
	for _, vm := range doc.VerificationMethod {
		if !matchesFragment(vm.ID, did, keyID) {
			continue
		}
		if vm.PublicKeyMultibase == nil {
			return nil, false
		}
		return &VerificationMaterial{
			Type:               vm.Type,
			PublicKeyMultibase: *vm.PublicKeyMultibase,
		}, true
	}
	return nil, false
}

// SigningKey returns the atproto repo signing key material, if any.
func SigningKey(doc *Doc) (*VerificationMaterial, bool) {
	return VerificationMaterialFor(doc, AtprotoKeyID)
}

// ServiceEndpoint returns the endpoint of the first service whose id matches serviceID.
func ServiceEndpoint(doc *Doc, serviceID string) (string, bool) {
	did := DID(doc)
	for _, svc := range doc.Service {
		if matchesFragment(svc.ID, did, serviceID) {
			return svc.ServiceEndpoint, true
		}
	}
	return "", false
}

func PDSEndpoint(doc *Doc) (string, bool) {
	return ServiceEndpoint(doc, AtprotoPDSServiceID)
}

// PublicKey parses the key material. Only Multikey (multicodec-prefixed multibase) is
// supported.
func (vm *VerificationMaterial) PublicKey() (atcrypto.PublicKey, error) {
	if vm.Type != "Multikey" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, vm.Type)
	}
	pub, err := atcrypto.ParsePublicMultibase(vm.PublicKeyMultibase)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return pub, nil
}

// DIDKey returns the key in did:key syntax.
func (vm *VerificationMaterial) DIDKey() (string, error) {
	pub, err := vm.PublicKey()
	if err != nil {
		return "", err
	}
	return pub.DIDKey(), nil
}
