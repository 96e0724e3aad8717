package sqldb

import "fmt"

type tableDef struct {
	name    string
	columns string
}

func (d *Dialect) tables() []tableDef {
	return []tableDef{
		{"formats", fmt.Sprintf(`
			id %s,
			name %s NOT NULL UNIQUE,
			code %s UNIQUE`, d.idType, d.nameType, d.codeType)},
		{"events", fmt.Sprintf(`
			id %s,
			external_id INTEGER UNIQUE,
			name %s NOT NULL,
			event_date DATE NOT NULL,
			player_count INTEGER,
			event_ranking INTEGER,
			format_id BIGINT,
			FOREIGN KEY (format_id) REFERENCES formats(id)`, d.idType, d.nameType)},
		{"players", fmt.Sprintf(`
			id %s,
			name %s NOT NULL UNIQUE`, d.idType, d.nameType)},
		{"decks", fmt.Sprintf(`
			id %s,
			player_id BIGINT NOT NULL,
			event_id BIGINT NOT NULL,
			deck_rank %s NOT NULL,
			FOREIGN KEY (player_id) REFERENCES players(id),
			FOREIGN KEY (event_id) REFERENCES events(id)`, d.idType, d.nameType)},
		{"deck_entries", fmt.Sprintf(`
			id %s,
			deck_id BIGINT NOT NULL,
			card_id INTEGER NOT NULL,
			FOREIGN KEY (deck_id) REFERENCES decks(id)`, d.idType)},
	}
}

// SchemaStatements returns idempotent DDL in dependency order.
func (d *Dialect) SchemaStatements() []string {
	tables := d.tables()
	stmts := make([]string, 0, len(tables))
	for _, t := range tables {
		if d == SQLServer {
			stmts = append(stmts, fmt.Sprintf("IF OBJECT_ID(N'dbo.%s', N'U') IS NULL CREATE TABLE %s (%s\n)", t.name, t.name, t.columns))
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", t.name, t.columns))
	}
	return stmts
}
