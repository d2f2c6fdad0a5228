package integration

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

func TestAccountMapDefaultsAndOverrides(t *testing.T) {
	t.Setenv("LEDGER_ACCOUNT_BANK", "1025")
	var m AccountMap
	require.NoError(t, envconfig.Process("LEDGER_ACCOUNT", &m))
	require.Equal(t, "1010", m.Number(RoleCash))
	require.Equal(t, "1025", m.Number(RoleBank))
	require.Equal(t, "4100", m.Number(RoleSalesReturns))

	got := m.With([]mappings.AccountMapping{
		{Key: "revenue", AccountNumber: "4020"},
		{Key: "UNKNOWN", AccountNumber: "9999"},
		{Key: "EXPENSE", AccountNumber: " "},
	})
	require.Equal(t, "4020", got.Number(RoleRevenue))
	require.Equal(t, "5100", got.Number(RoleExpense))
	require.Equal(t, "4010", m.Number(RoleRevenue))
	require.Empty(t, got.Number(Role("OTHER")))
}

func TestValidRole(t *testing.T) {
	for _, key := range []string{"cash", "SALES_RETURNS", " Payable "} {
		if !ValidRole(key) {
			t.Fatalf("expected %q to be a role", key)
		}
	}
	require.False(t, ValidRole("TAX"))
}
