package moderation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// Column is one field of a collection. SQLType is used only by relational
// backends.
type Column struct {
	Name     string
	SQLType  string
	Nullable bool
	// MaxLength bounds string values; zero means unbounded.
	MaxLength int
}

// Table describes a collection and the indexes it needs.
type Table struct {
	Name    string
	Columns []Column
	Indexes []core.IndexSpec
}

// CreateSQL renders a CREATE TABLE IF NOT EXISTS statement understood by
// both MySQL and SQLite.
func (t Table) CreateSQL() string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := c.Name + " " + c.SQLType
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))
}

// Validate checks that every non-nullable column is present and that string
// values fit their column.
func (t Table) Validate(record core.Record) error {
	for _, c := range t.Columns {
		v, ok := record.Get(c.Name)
		if !ok || v == nil {
			if !c.Nullable {
				return fmt.Errorf("%w: %s.%s cannot be NULL", ErrInvalidArgument, t.Name, c.Name)
			}
			continue
		}
		if s, isString := v.(string); isString && c.MaxLength > 0 && utf8.RuneCountInString(s) > c.MaxLength {
			return fmt.Errorf("%w: %s.%s is longer than %d characters", ErrInvalidArgument, t.Name, c.Name, c.MaxLength)
		}
	}
	return nil
}

func varchar(n int) string {
	return fmt.Sprintf("VARCHAR(%d)", n)
}

// MaxReasonLength is the longest reason stored; longer reasons are cut.
const MaxReasonLength = 255

// UsersTable is the schema of the users collection.
var UsersTable = Table{
	Name: CollectionUsers,
	Columns: []Column{
		{Name: fieldUUID, SQLType: varchar(36), MaxLength: 36},
		{Name: fieldName, SQLType: varchar(16), MaxLength: 16},
		{Name: fieldIP, SQLType: varchar(45), Nullable: true, MaxLength: 45},
		{Name: fieldLastSeen, SQLType: "BIGINT"},
	},
	Indexes: []core.IndexSpec{
		{Collection: CollectionUsers, Field: fieldUUID, Unique: true},
		{Collection: CollectionUsers, Field: fieldName},
	},
}

// PunishmentTable returns the schema of the collection holding kind.
func PunishmentTable(kind Kind) Table {
	name := kind.Collection()
	return Table{
		Name: name,
		Columns: []Column{
			{Name: fieldID, SQLType: varchar(36), MaxLength: 36},
			{Name: fieldTarget, SQLType: varchar(36), MaxLength: 36},
			{Name: fieldIP, SQLType: varchar(45), Nullable: true, MaxLength: 45},
			{Name: fieldIPBan, SQLType: "BOOLEAN"},
			{Name: fieldActor, SQLType: varchar(36), MaxLength: 36},
			{Name: fieldReason, SQLType: varchar(MaxReasonLength), MaxLength: MaxReasonLength},
			{Name: fieldCreated, SQLType: "BIGINT"},
			{Name: fieldExpires, SQLType: "BIGINT"},
			{Name: fieldActive, SQLType: "BOOLEAN"},
			{Name: fieldRevokedBy, SQLType: varchar(36), Nullable: true, MaxLength: 36},
			{Name: fieldRevokedAt, SQLType: "BIGINT"},
		},
		Indexes: []core.IndexSpec{
			{Collection: name, Field: fieldID, Unique: true},
			{Collection: name, Field: fieldTarget},
		},
	}
}

// Tables returns every collection the moderation layer uses.
func Tables() []Table {
	tables := []Table{UsersTable}
	for _, k := range Kinds {
		tables = append(tables, PunishmentTable(k))
	}
	return tables
}

// EnsureSchema creates the collections and their indexes. Relational
// backends get CREATE TABLE IF NOT EXISTS; the document backend creates
// tables on demand and only needs the indexes. Safe to run on every start.
func EnsureSchema(ctx context.Context, store core.DataStore) error {
	for _, t := range Tables() {
		if store.Type().Relational() {
			if err := store.Query(ctx, t.CreateSQL()); err != nil {
				return fmt.Errorf("failed to create %s: %w", t.Name, err)
			}
		}
		for _, idx := range t.Indexes {
			if err := store.CreateIndex(ctx, idx); err != nil {
				return fmt.Errorf("failed to index %s.%s: %w", idx.Collection, idx.Field, err)
			}
		}
	}
	log.Printf("[MODERATION] Schema ready on %s (%d collections)", store.Type(), len(Tables()))
	return nil
}
