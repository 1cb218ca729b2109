package ledger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of an accounts file:
//
//	accounts:
//	  - id: ACC001
//	    holder: Sergio Rock
//	    balance: "1000.00"
type seedFile struct {
	Accounts []struct {
		ID      string `yaml:"id"`
		Holder  string `yaml:"holder"`
		Balance string `yaml:"balance"`
	} `yaml:"accounts"`
}

// ParseSeed decodes a YAML accounts document.
func ParseSeed(data []byte) ([]models.Account, error) {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}
	accounts := make([]models.Account, 0, len(sf.Accounts))
	for _, a := range sf.Accounts {
		balance, err := decimal.NewFromString(a.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q for account %q: %w", a.Balance, a.ID, err)
		}
		accounts = append(accounts, models.Account{ID: a.ID, Holder: a.Holder, Balance: balance.Round(2)})
	}
	return accounts, nil
}

// LoadFile builds a ledger from a YAML accounts file.
func LoadFile(path string) (*Ledger, error) {
	slog.Debug("Ledger.LoadFile: reading accounts file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %s: %w", path, err)
	}
	accounts, err := ParseSeed(data)
	if err != nil {
		return nil, err
	}
	return New(accounts)
}
