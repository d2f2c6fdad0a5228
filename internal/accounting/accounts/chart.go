package accounts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ChartAccount is one node of a chart-of-accounts seed file.
type ChartAccount struct {
	Number         string         `yaml:"number"`
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	Classification string         `yaml:"classification"`
	Description    string         `yaml:"description"`
	OpeningBalance string         `yaml:"opening_balance"`
	Children       []ChartAccount `yaml:"children"`
}

// Chart is a seed file. Children inherit their parent's type when they omit it.
type Chart struct {
	Accounts []ChartAccount `yaml:"accounts"`
}

// LoadChart decodes and validates a YAML chart.
func LoadChart(r io.Reader) (Chart, error) {
	var chart Chart
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&chart); err != nil {
		return Chart{}, fmt.Errorf("accounts: decode chart: %w", err)
	}
	var walk func(nodes []ChartAccount, inherited shared.AccountType, path string) error
	walk = func(nodes []ChartAccount, inherited shared.AccountType, path string) error {
		for i := range nodes {
			node := &nodes[i]
			where := fmt.Sprintf("%s/%s", path, node.Name)
			if strings.TrimSpace(node.Type) == "" {
				node.Type = string(inherited)
			}
			t, err := shared.ParseAccountType(node.Type)
			if err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			if inherited != "" && t != inherited {
				return fmt.Errorf("%s: %w", where, shared.ErrParentTypeMismatch)
			}
			node.Type = string(t)
			if strings.TrimSpace(node.Name) == "" {
				return fmt.Errorf("%s: %w", where, shared.ErrNameRequired)
			}
			if node.Number != "" {
				if err := shared.ValidateAccountNumber(t, node.Number); err != nil {
					return fmt.Errorf("%s: %w", where, err)
				}
			}
			if node.OpeningBalance != "" {
				if _, err := decimal.NewFromString(node.OpeningBalance); err != nil {
					return fmt.Errorf("%s: %w", where, shared.ErrInvalidAmount)
				}
			}
			if !Classification(strings.ToUpper(node.Classification)).Valid() {
				return fmt.Errorf("%s: %w", where, shared.ErrInvalidClassification)
			}
			if err := walk(node.Children, t, where); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(chart.Accounts, "", ""); err != nil {
		return Chart{}, err
	}
	return chart, nil
}

// SeedResult reports what SeedChart did.
type SeedResult struct {
	Created []Account
	Skipped []string
}

// seedKey identifies unnumbered nodes by their place in the tree.
func seedKey(parent *int64, name string) string {
	var id int64
	if parent != nil {
		id = *parent
	}
	return fmt.Sprintf("%d/%s", id, strings.ToLower(strings.TrimSpace(name)))
}

// SeedChart creates the chart for a company, parents first. Accounts whose
// number already exists, or unnumbered accounts already present
// under the same parent, are skipped, so seeding twice is harmless.
func (s *Registry) SeedChart(ctx context.Context, companyID int64, chart Chart) (SeedResult, error) {
	existing, err := s.repo.List(ctx, ListAccountsFilter{CompanyID: companyID})
	if err != nil {
		return SeedResult{}, err
	}
	byNumber := make(map[string]Account, len(existing))
	byName := make(map[string]Account, len(existing))
	for _, a := range existing {
		byNumber[a.Number] = a
		byName[seedKey(a.ParentID, a.Name)] = a
	}
	var result SeedResult
	var seed func(nodes []ChartAccount, parent *int64) error
	seed = func(nodes []ChartAccount, parent *int64) error {
		for _, node := range nodes {
			acct, ok := byNumber[node.Number]
			if node.Number == "" {
				acct, ok = byName[seedKey(parent, node.Name)]
			}
			if ok {
				result.Skipped = append(result.Skipped, acct.Number)
			} else {
				opening := decimal.Zero
				if node.OpeningBalance != "" {
					opening = decimal.RequireFromString(node.OpeningBalance)
				}
				created, err := s.Create(ctx, CreateAccountInput{
					CompanyID:      companyID,
					Number:         node.Number,
					Name:           node.Name,
					Type:           shared.AccountType(node.Type),
					ParentID:       parent,
					OpeningBalance: opening,
					Classification: Classification(strings.ToUpper(node.Classification)),
					Description:    node.Description,
				})
				if err != nil {
					return fmt.Errorf("seed %s %q: %w", node.Number, node.Name, err)
				}
				acct = created
				byNumber[created.Number] = created
				byName[seedKey(parent, created.Name)] = created
				result.Created = append(result.Created, created)
			}
			id := acct.ID
			if err := seed(node.Children, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := seed(chart.Accounts, nil); err != nil {
		return result, err
	}
	return result, nil
}
