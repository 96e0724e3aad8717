package storage

import "context"

type formatSeed struct {
	name string
	code string
}

// knownFormats is the static reference set; an empty code is stored as NULL.
var knownFormats = []formatSeed{
	{"Vintage", "VI"},
	{"Legacy", "LE"},
	{"Modern", "MO"},
	{"Standard", "ST"},
	{"Commander", "EDH"},
	{"Pauper", "PAU"},
	{"Peasant", "PEA"},
	{"Block", "BL"},
	{"Extended", "EX"},
	{"Highlander", "HIGH"},
	{"Canadian Highlander", "CHL"},
	{"Limited", ""},
}

// SeedFormats get-or-creates every known format and returns how many there are.
func SeedFormats(ctx context.Context, uow UnitOfWork) (int, error) {
	for _, seed := range knownFormats {
		var code *string
		if seed.code != "" {
			c := seed.code
			code = &c
		}
		if _, err := uow.GetOrCreateFormat(ctx, seed.name, code); err != nil {
			return 0, err
		}
	}
	return len(knownFormats), nil
}
