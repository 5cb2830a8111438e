package pds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/pdscore/go-pdscore/canonical"
	"github.com/pdscore/go-pdscore/pdsutil"
	"gorm.io/gorm"
)

type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type StoredRecord struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

func recordURI(repo, collection, rkey string) string {
	return "at://" + repo + "/" + collection + "/" + rkey
}

// PutRecord canonicalizes record, derives its CID and stores it under a fresh TID
// record key. If the record cannot be canonically encoded nothing is written.
func (s *Store) PutRecord(ctx context.Context, repo string, collection string, record any) (*RecordRef, error) {
	if _, err := syntax.ParseDID(repo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if _, err := syntax.ParseNSID(collection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	node, err := canonical.Normalize(record)
	if err != nil {
		EncodeFailuresCounter.Add(ctx, 1)
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	m, ok := node.(*canonical.Map)
	if !ok {
		return nil, fmt.Errorf("%w: record must be an object", ErrInvalidRecord)
	}
	if typ, ok := m.Get("$type"); ok && typ != collection {
		return nil, fmt.Errorf("%w: $type %v does not match collection %s", ErrInvalidRecord, typ, collection)
	}
	value, err := canonical.Encode(m)
	if err != nil {
		EncodeFailuresCounter.Add(ctx, 1)
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	c, err := canonical.CIDForBytes(value)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetAccount(ctx, repo); err != nil {
		return nil, err
	}

	rkey := syntax.NewTID(s.nextTIDMicros(), 0).String()
	row := RecordRow{
		URI:        recordURI(repo, collection, rkey),
		Repo:       repo,
		Collection: collection,
		RKey:       rkey,
		CID:        c.String(),
		Value:      value,
		IndexedAt:  pdsutil.Now(s.clock),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	RecordsCreatedCounter.Add(ctx, 1)
	s.logger.Debug("record stored", "uri", row.URI, "cid", row.CID)
	return &RecordRef{URI: row.URI, CID: row.CID}, nil
}

// GetRecord loads a record and renders it back to JSON. The stored bytes are checked
// against the stored CID.
func (s *Store) GetRecord(ctx context.Context, repo string, collection string, rkey string) (*StoredRecord, error) {
	var row RecordRow
	result := s.db.WithContext(ctx).Where("uri = ?", recordURI(repo, collection, rkey)).Take(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	c, err := canonical.CIDForBytes(row.Value)
	if err != nil {
		return nil, err
	}
	if c.String() != row.CID {
		return nil, fmt.Errorf("stored record %s does not match its CID", row.URI)
	}
	node, err := canonical.Unmarshal(row.Value)
	if err != nil {
		return nil, fmt.Errorf("decoding stored record %s: %w", row.URI, err)
	}
	js, err := canonical.ToJSON(node)
	if err != nil {
		return nil, err
	}
	return &StoredRecord{URI: row.URI, CID: row.CID, Value: js}, nil
}
