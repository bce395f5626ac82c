package moderation

import (
	"testing"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripColors(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"§cred §lbold", "red bold"},
		{"&4dark &Rreset", "dark reset"},
		{"&x&f&f&0&0&0&0hex", "hex"},
		{"rock & roll", "rock & roll"},
		{"50% & §zunknown", "50% & §zunknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StripColors(c.in), c.in)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"ban", "BANS", " ban "} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, KindBan, k)
	}
	k, err := ParseKind("warnings")
	require.NoError(t, err)
	assert.Equal(t, KindWarn, k)

	_, err = ParseKind("jail")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "", Kind("jail").Collection())
}

func TestPunishmentInForce(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.True(t, Punishment{Active: true}.InForce(now))
	assert.False(t, Punishment{Active: false}.InForce(now))
	assert.True(t, Punishment{Active: true, Expires: now.Add(time.Second)}.InForce(now))
	assert.False(t, Punishment{Active: true, Expires: now}.InForce(now))
}

func TestPunishmentRecordTolerance(t *testing.T) {
	// Relational engines return 0/1 for booleans, the document store
	// returns bool, and the cache may hand back float64 numbers.
	r := core.NewRecord(
		fieldID, "p-1",
		fieldTarget, []byte("u-1"),
		fieldIPBan, int64(1),
		fieldActive, true,
		fieldCreated, float64(1700000000000),
		fieldExpires, int64(0),
		fieldRevokedBy, nil,
	)
	p := punishmentFromRecord(KindBan, r)
	assert.Equal(t, "u-1", p.Target)
	assert.True(t, p.IPBan)
	assert.True(t, p.Active)
	assert.Equal(t, int64(1700000000000), p.Created.UnixMilli())
	assert.True(t, p.Permanent())
	assert.Equal(t, "", p.RevokedBy)
}

func TestTableSQL(t *testing.T) {
	sql := UsersTable.CreateSQL()
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS users (uuid VARCHAR(36) NOT NULL, name VARCHAR(16) NOT NULL, ip VARCHAR(45), last_seen BIGINT NOT NULL)", sql)
	assert.Len(t, Tables(), 5)

	err := UsersTable.Validate(core.NewRecord(fieldUUID, "u", fieldName, "n"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NoError(t, UsersTable.Validate(core.NewRecord(fieldUUID, "u", fieldName, "n", fieldLastSeen, int64(1))))
}
