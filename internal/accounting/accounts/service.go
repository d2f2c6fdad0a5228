package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// maxNumberAttempts bounds retries when two creators race for the same auto number.
const maxNumberAttempts = 5

// maxHierarchyDepth stops ancestor walks over corrupt data.
const maxHierarchyDepth = 64

// Registry manages the chart of accounts.
type Registry struct {
	repo   Repository
	logger *slog.Logger
}

// NewRegistry constructs the account registry.
func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, logger: logger}
}

// Get returns an account by id.
func (s *Registry) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts matching filter ordered by number.
func (s *Registry) List(ctx context.Context, filter ListAccountsFilter) ([]Account, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, shared.ErrInvalidAccountType
	}
	return s.repo.List(ctx, filter)
}

// Tree returns the chart of accounts of a company as a forest.
func (s *Registry) Tree(ctx context.Context, companyID int64) ([]*Node, error) {
	list, err := s.repo.List(ctx, ListAccountsFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

// Create opens a new account. When no number is supplied one is allocated from
// the type's range; a concurrent creator taking the same number causes a retry.
func (s *Registry) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := validateCreate(in); err != nil {
		return Account{}, err
	}
	attempts := 1
	if strings.TrimSpace(in.Number) == "" {
		attempts = maxNumberAttempts
	}
	var (
		created Account
		err     error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		created, err = s.create(ctx, in)
		if err == nil || !errors.Is(err, shared.ErrDuplicateAccountNumber) || attempts == 1 {
			break
		}
		s.logger.Warn("account number collision, retrying",
			slog.Int64("company_id", in.CompanyID),
			slog.String("type", string(in.Type)),
			slog.Int("attempt", attempt))
	}
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created",
		slog.Int64("account_id", created.ID),
		slog.Int64("company_id", created.CompanyID),
		slog.String("number", created.Number))
	return created, nil
}

func (s *Registry) create(ctx context.Context, in CreateAccountInput) (Account, error) {
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number := strings.TrimSpace(in.Number)
		if number == "" {
			r, err := shared.RangeFor(in.Type)
			if err != nil {
				return err
			}
			highest, err := tx.HighestNumberInRange(ctx, in.CompanyID, r)
			if err != nil {
				return err
			}
			number, err = shared.NextAccountNumber(in.Type, highest)
			if err != nil {
				return err
			}
		} else {
			exists, err := tx.NumberExists(ctx, in.CompanyID, number, 0)
			if err != nil {
				return err
			}
			if exists {
				return shared.ErrDuplicateAccountNumber
			}
		}
		if in.ParentID != nil {
			if err := checkParent(ctx, tx, 0, in.CompanyID, in.Type, *in.ParentID); err != nil {
				return err
			}
		}
		inserted, err := tx.Insert(ctx, Account{
			CompanyID:      in.CompanyID,
			Number:         number,
			Name:           strings.TrimSpace(in.Name),
			Type:           in.Type,
			ParentID:       in.ParentID,
			OpeningBalance: in.OpeningBalance,
			OpeningSide:    in.Type.NormalSide(),
			CurrentBalance: in.OpeningBalance,
			Classification: in.Classification,
			Description:    in.Description,
			IsActive:       true,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	return created, err
}

// Update applies a patch, re-validating the hierarchy when the parent or type changes.
func (s *Registry) Update(ctx context.Context, id int64, in UpdateAccountInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := current
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return shared.ErrNameRequired
			}
			next.Name = name
		}
		if in.Description != nil {
			next.Description = *in.Description
		}
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
		}
		if in.Classification != nil {
			if !in.Classification.Valid() {
				return shared.ErrInvalidClassification
			}
			next.Classification = *in.Classification
		}
		if in.Type != nil && *in.Type != current.Type {
			if !in.Type.Valid() {
				return shared.ErrInvalidAccountType
			}
			if err := s.ensureTypeChangeAllowed(ctx, tx, current); err != nil {
				return err
			}
			next.Type = *in.Type
			next.OpeningSide = in.Type.NormalSide()
		}
		if in.ClearParent {
			next.ParentID = nil
		} else if in.ParentID != nil {
			pid := *in.ParentID
			next.ParentID = &pid
		}
		if next.ParentID != nil && (parentChanged(current.ParentID, next.ParentID) || next.Type != current.Type) {
			if err := checkParent(ctx, tx, current.ID, current.CompanyID, next.Type, *next.ParentID); err != nil {
				return err
			}
		}
		if in.Number != nil {
			next.Number = strings.TrimSpace(*in.Number)
		}
		if next.Number != current.Number || next.Type != current.Type {
			if err := shared.ValidateAccountNumber(next.Type, next.Number); err != nil {
				return err
			}
			exists, err := tx.NumberExists(ctx, current.CompanyID, next.Number, current.ID)
			if err != nil {
				return err
			}
			if exists {
				return shared.ErrDuplicateAccountNumber
			}
		}
		if in.OpeningBalance != nil {
			next.OpeningBalance = *in.OpeningBalance
		}
		result, err := tx.Update(ctx, next)
		if err != nil {
			return err
		}
		if delta := next.OpeningBalance.Sub(current.OpeningBalance); !delta.IsZero() {
			if err := tx.AdjustBalance(ctx, current.ID, delta); err != nil {
				return err
			}
			result.CurrentBalance = result.CurrentBalance.Add(delta)
		}
		updated = result
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// Delete removes an account that has neither journal lines nor children.
func (s *Registry) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		lines, err := tx.CountLines(ctx, id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return shared.ErrHasTransactions
		}
		children, err := tx.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return shared.ErrHasChildren
		}
		return tx.Delete(ctx, id)
	})
}

func (s *Registry) ensureTypeChangeAllowed(ctx context.Context, tx TxRepository, current Account) error {
	lines, err := tx.CountLines(ctx, current.ID)
	if err != nil {
		return err
	}
	children, err := tx.CountChildren(ctx, current.ID)
	if err != nil {
		return err
	}
	if lines > 0 || children > 0 {
		return shared.ErrTypeChangeNotAllowed
	}
	return nil
}

// checkParent validates a proposed parent for account id (0 when creating).
// The walk climbs from the parent and fails if it reaches id.
func checkParent(ctx context.Context, tx TxRepository, id, companyID int64, accountType shared.AccountType, parentID int64) error {
	if id != 0 && parentID == id {
		return shared.ErrCircularReference
	}
	parent, err := tx.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return fmt.Errorf("parent %d: %w", parentID, err)
		}
		return err
	}
	if parent.CompanyID != companyID {
		return shared.ErrCompanyMismatch
	}
	if parent.Type != accountType {
		return shared.ErrParentTypeMismatch
	}
	if id == 0 {
		return nil
	}
	cursor := parent
	for depth := 0; cursor.ParentID != nil; depth++ {
		if *cursor.ParentID == id || depth >= maxHierarchyDepth {
			return shared.ErrCircularReference
		}
		cursor, err = tx.Get(ctx, *cursor.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

func parentChanged(a, b *int64) bool {
	if a == nil || b == nil {
		return a != b
	}
	return *a != *b
}

func validateCreate(in CreateAccountInput) error {
	if in.CompanyID == 0 {
		return shared.ErrCompanyRequired
	}
	if !in.Type.Valid() {
		return shared.ErrInvalidAccountType
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.ErrNameRequired
	}
	if n := strings.TrimSpace(in.Number); n != "" {
		if err := shared.ValidateAccountNumber(in.Type, n); err != nil {
			return err
		}
	}
	if !in.Classification.Valid() {
		return shared.ErrInvalidClassification
	}
	if in.OpeningBalance.IsNegative() {
		return fmt.Errorf("%w: opening balance must not be negative", shared.ErrInvalidAmount)
	}
	return nil
}
