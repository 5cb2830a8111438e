package pds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/pdscore/go-pdscore/pdsutil"
	"gorm.io/gorm"
)

// AccountManager is the slice of account management the HTTP layer needs.
type AccountManager interface {
	SetAccountInvitesDisabled(ctx context.Context, did string, disabled bool) error
}

var _ AccountManager = (*Store)(nil)

func (s *Store) CreateAccount(ctx context.Context, did string, handle string) (*Account, error) {
	if _, err := syntax.ParseDID(did); err != nil {
		return nil, err
	}
	h, err := syntax.ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	acct := Account{
		DID:       did,
		Handle:    h.Normalize().String(),
		CreatedAt: pdsutil.Now(s.clock),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Account{}).Where("did = ? OR handle = ?", acct.DID, acct.Handle).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAccountExists
		}
		return tx.Create(&acct).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.Info("account created", "did", acct.DID, "handle", acct.Handle)
	return &acct, nil
}

// GetAccount returns ErrAccountNotFound if there is no such DID.
func (s *Store) GetAccount(ctx context.Context, did string) (*Account, error) {
	var acct Account
	result := s.db.WithContext(ctx).Where("did = ?", did).Take(&acct)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &acct, nil
}

// SetAccountInvitesDisabled toggles whether the account may be issued invite codes.
func (s *Store) SetAccountInvitesDisabled(ctx context.Context, did string, disabled bool) error {
	result := s.db.WithContext(ctx).Model(&Account{}).Where("did = ?", did).Update("invites_disabled", disabled)
	if result.Error != nil {
		return fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	s.logger.Info("account invites updated", "did", did, "disabled", disabled)
	return nil
}

// CreateInviteCode issues a new invite code on behalf of forAccount.
func (s *Store) CreateInviteCode(ctx context.Context, forAccount string, createdBy string) (string, error) {
	acct, err := s.GetAccount(ctx, forAccount)
	if err != nil {
		return "", err
	}
	if acct.InvitesDisabled {
		return "", ErrInvitesDisabled
	}

	token, err := s.randomToken()
	if err != nil {
		return "", err
	}
	code := token
	if prefix := invitePrefix(s.hostname); prefix != "" {
		code = prefix + "-" + token
	}

	invite := InviteCode{
		Code:       code,
		ForAccount: forAccount,
		CreatedBy:  createdBy,
		CreatedAt:  pdsutil.Now(s.clock),
	}
	if err := s.db.WithContext(ctx).Create(&invite).Error; err != nil {
		return "", fmt.Errorf("failed to create invite code: %w", err)
	}
	return code, nil
}

func invitePrefix(hostname string) string {
	return strings.ReplaceAll(hostname, ".", "-")
}

func (s *Store) ListInviteCodes(ctx context.Context, forAccount string) ([]InviteCode, error) {
	var codes []InviteCode
	if err := s.db.WithContext(ctx).Where("for_account = ?", forAccount).Order("created_at ASC").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return codes, nil
}
