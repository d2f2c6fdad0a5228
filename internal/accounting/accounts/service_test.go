package accounts_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newRegistry() (*accounts.Registry, *ledgertest.Store) {
	store := ledgertest.New()
	return accounts.NewRegistry(store.Accounts(), nil), store
}

func TestCreateAutoNumbersWithinTypeRange(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()

	first, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1000", first.Number)

	second, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Bank", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1001", second.Number)

	revenue, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Sales", Type: shared.AccountTypeRevenue})
	require.NoError(t, err)
	require.Equal(t, "4000", revenue.Number)

	other, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 2, Name: "Cash", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1000", other.Number)
}

func TestCreateFailsWhenRangeExhausted(t *testing.T) {
	reg, store := newRegistry()
	store.SeedAccount(accounts.Account{CompanyID: 1, Number: "3999", Name: "Last", Type: shared.AccountTypeEquity, IsActive: true})

	_, err := reg.Create(context.Background(), accounts.CreateAccountInput{CompanyID: 1, Name: "Overflow", Type: shared.AccountTypeEquity})
	require.ErrorIs(t, err, shared.ErrRangeExhausted)
	require.True(t, shared.IsKind(err, shared.KindConflict))
}

func TestCreateNormalisesOpeningSide(t *testing.T) {
	reg, _ := newRegistry()
	acct, err := reg.Create(context.Background(), accounts.CreateAccountInput{
		CompanyID:      1,
		Name:           "Capital",
		Type:           shared.AccountTypeEquity,
		OpeningBalance: decimal.NewFromInt(10000),
		OpeningSide:    shared.Debit,
	})
	require.NoError(t, err)
	require.Equal(t, shared.Credit, acct.OpeningSide)
	require.True(t, acct.CurrentBalance.Equal(decimal.NewFromInt(10000)))
	require.True(t, acct.IsActive)
}

func TestCreateValidatesSuppliedNumber(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()

	_, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "2100", Name: "Cash", Type: shared.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrInvalidAccountNumber)

	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "1100", Name: "Cash", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "1100", Name: "Petty", Type: shared.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateAccountNumber)

	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "  ", Type: shared.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrNameRequired)

	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "X", Type: "INCOME"})
	require.ErrorIs(t, err, shared.ErrInvalidAccountType)
}

func TestCreateRetriesAfterNumberCollision(t *testing.T) {
	reg, store := newRegistry()
	store.FailOn("Insert", shared.ErrDuplicateAccountNumber)

	_, err := reg.Create(context.Background(), accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateAccountNumber)

	store.FailOn("Insert", nil)
	acct, err := reg.Create(context.Background(), accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1000", acct.Number)
}

func TestParentMustShareCompanyAndType(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()
	assets, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Current Assets", Type: shared.AccountTypeAsset})
	require.NoError(t, err)

	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Payables", Type: shared.AccountTypeLiability, ParentID: &assets.ID})
	require.ErrorIs(t, err, shared.ErrParentTypeMismatch)
	require.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 2, Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &assets.ID})
	require.ErrorIs(t, err, shared.ErrCompanyMismatch)

	missing := int64(404)
	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	child, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &assets.ID})
	require.NoError(t, err)
	require.Equal(t, assets.ID, *child.ParentID)
}

func TestUpdateRejectsCycles(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()
	root, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Assets", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	mid, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Current", Type: shared.AccountTypeAsset, ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &mid.ID})
	require.NoError(t, err)

	_, err = reg.Update(ctx, root.ID, accounts.UpdateAccountInput{ParentID: &leaf.ID})
	require.ErrorIs(t, err, shared.ErrCircularReference)
	_, err = reg.Update(ctx, root.ID, accounts.UpdateAccountInput{ParentID: &root.ID})
	require.ErrorIs(t, err, shared.ErrCircularReference)

	moved, err := reg.Update(ctx, leaf.ID, accounts.UpdateAccountInput{ParentID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, root.ID, *moved.ParentID)

	detached, err := reg.Update(ctx, leaf.ID, accounts.UpdateAccountInput{ClearParent: true})
	require.NoError(t, err)
	require.Nil(t, detached.ParentID)
}

func TestUpdateOpeningBalanceAdjustsCurrent(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()
	acct, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset, OpeningBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	opening := decimal.NewFromInt(250)
	updated, err := reg.Update(ctx, acct.ID, accounts.UpdateAccountInput{OpeningBalance: &opening})
	require.NoError(t, err)
	require.True(t, updated.CurrentBalance.Equal(decimal.NewFromInt(250)))

	stored, err := reg.Get(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, stored.CurrentBalance.Equal(decimal.NewFromInt(250)))
}

func TestDeleteGuards(t *testing.T) {
	reg, store := newRegistry()
	ctx := context.Background()
	parent, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Assets", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	cash, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)
	sales, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Sales", Type: shared.AccountTypeRevenue})
	require.NoError(t, err)

	require.ErrorIs(t, reg.Delete(ctx, parent.ID), shared.ErrHasChildren)

	ledger := journals.NewService(store.Journals(), nil, nil)
	_, err = ledger.Create(ctx, journals.CreateEntryInput{
		CompanyID: 1,
		Date:      cash.CreatedAt,
		Lines: []journals.LineInput{
			{AccountID: cash.ID, Type: shared.Debit, Amount: decimal.NewFromInt(1)},
			{AccountID: sales.ID, Type: shared.Credit, Amount: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	require.ErrorIs(t, reg.Delete(ctx, cash.ID), shared.ErrHasTransactions)

	newType := shared.AccountTypeExpense
	_, err = reg.Update(ctx, sales.ID, accounts.UpdateAccountInput{Type: &newType})
	require.ErrorIs(t, err, shared.ErrTypeChangeNotAllowed)

	lonely, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Name: "Spare", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, lonely.ID))
	_, err = reg.Get(ctx, lonely.ID)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestTreeTreatsOrphansAsRoots(t *testing.T) {
	reg, store := newRegistry()
	ctx := context.Background()
	root, err := reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "1000", Name: "Assets", Type: shared.AccountTypeAsset})
	require.NoError(t, err)
	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "1100", Name: "Cash", Type: shared.AccountTypeAsset, ParentID: &root.ID})
	require.NoError(t, err)
	_, err = reg.Create(ctx, accounts.CreateAccountInput{CompanyID: 1, Number: "1050", Name: "Bank", Type: shared.AccountTypeAsset, ParentID: &root.ID})
	require.NoError(t, err)
	ghost := int64(999)
	store.SeedAccount(accounts.Account{CompanyID: 1, Number: "1500", Name: "Equipment", Type: shared.AccountTypeAsset, ParentID: &ghost, IsActive: true})

	tree, err := reg.Tree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, "1000", tree[0].Account.Number)
	require.Equal(t, "1500", tree[1].Account.Number)
	require.Len(t, tree[0].Children, 2)
	require.Equal(t, "1050", tree[0].Children[0].Account.Number)

	var depths []int
	accounts.Walk(tree, func(n *accounts.Node, depth int) { depths = append(depths, depth) })
	require.Equal(t, []int{0, 1, 1, 0}, depths)
}
