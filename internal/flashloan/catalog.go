package flashloan

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
)

// The supported venue set is closed. Catalog entries naming any other venue
// are a configuration error, not a silent skip.
var supportedVenues = map[string]struct{}{
	"solend":   {},
	"marginfi": {},
}

type catalogFile struct {
	Providers []catalogEntry `toml:"providers"`
}

type catalogEntry struct {
	Venue     string `toml:"venue"`
	Name      string `toml:"name"`
	ProgramID string `toml:"program_id"`
	MaxLoan   uint64 `toml:"max_loan"`
	FeeBps    uint16 `toml:"fee_bps"`
}

// LoadCatalog reads a TOML provider catalog and returns the configured
// providers in file order.
func LoadCatalog(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flashloan: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds providers from raw TOML catalog bytes.
func ParseCatalog(data []byte) ([]Provider, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("flashloan: parse catalog: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("flashloan: catalog has no providers")
	}

	providers := make([]Provider, 0, len(file.Providers))
	for i, e := range file.Providers {
		if _, ok := supportedVenues[e.Venue]; !ok {
			return nil, fmt.Errorf("flashloan: provider %d: unsupported venue %q", i, e.Venue)
		}
		if e.Name == "" {
			e.Name = e.Venue
		}
		if e.MaxLoan == 0 {
			return nil, fmt.Errorf("flashloan: provider %q: max_loan must be positive", e.Name)
		}
		program, err := solana.PublicKeyFromBase58(e.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("flashloan: provider %q: invalid program_id: %w", e.Name, err)
		}
		providers = append(providers, &venueProvider{
			name:      e.Name,
			maxLoan:   e.MaxLoan,
			feeBps:    e.FeeBps,
			programID: program,
		})
	}
	return providers, nil
}
