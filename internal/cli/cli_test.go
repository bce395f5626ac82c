package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/modstore/internal/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sqliteArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--driver", "sqlite", "--endpoint", filepath.Join(t.TempDir(), "mod.db")}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "modstore", cmd.Use)

	for _, name := range []string{"ping", "select", "query", "exec", "index", "user", "ban", "mute", "warn", "kick"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "driver", "endpoint", "username", "password", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestKickHasNoRevoke(t *testing.T) {
	cmd := NewRootCommand()
	kick, _, err := cmd.Find([]string{"kick"})
	require.NoError(t, err)
	for _, sub := range kick.Commands() {
		assert.NotEqual(t, "revoke", sub.Name())
	}
	add, _, err := cmd.Find([]string{"kick", "add"})
	require.NoError(t, err)
	assert.Nil(t, add.Flags().Lookup("duration"))
	assert.Nil(t, add.Flags().Lookup("ip-ban"))
}

func TestLoadConfigFlagsWin(t *testing.T) {
	opts := &RootOptions{Driver: "dynamodb", Endpoint: "http://localhost:8000", Username: "key", Password: "secret"}
	cfg, err := opts.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "dynamodb", cfg.Store.Driver)
	assert.Equal(t, "http://localhost:8000", cfg.Store.Endpoint)
	assert.Equal(t, "key", cfg.Store.Username)
	assert.Equal(t, "secret", cfg.Store.Password)

	opts = &RootOptions{Driver: "oracle"}
	_, err = opts.LoadConfig()
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "ping")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPing(t *testing.T) {
	out, err := run(t, append(sqliteArgs(t), "ping")...)
	require.NoError(t, err)
	assert.Contains(t, out, "connected to relational_embedded")
}

func TestPingConnectFailure(t *testing.T) {
	_, err := run(t, "--driver", "sqlite", "--endpoint", filepath.Join(t.TempDir(), "no", "such", "dir.db"), "ping")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBanLifecycle(t *testing.T) {
	base := sqliteArgs(t)

	out, err := run(t, append(base, "--format", "json", "ban", "add", "steve", "--reason", "&cgriefing", "--actor", "alex")...)
	require.NoError(t, err)
	var added []punishmentView
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.Len(t, added, 1)
	assert.Equal(t, "steve", added[0].Target)
	assert.Equal(t, "griefing", added[0].Reason)
	assert.Equal(t, "ban", added[0].Kind)
	assert.True(t, added[0].Active)
	assert.Nil(t, added[0].Expires)

	out, err = run(t, append(base, "ban", "list", "steve", "--active")...)
	require.NoError(t, err)
	assert.Contains(t, out, added[0].ID)

	out, err = run(t, append(base, "ban", "revoke", "steve", "--actor", "alex")...)
	require.NoError(t, err)
	assert.Equal(t, "revoked 1 ban record(s) for steve\n", out)

	out, err = run(t, append(base, "--format", "json", "ban", "list", "steve", "--active")...)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = run(t, append(base, "--format", "json", "ban", "list")...)
	require.NoError(t, err)
	var all []punishmentView
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)
	assert.Equal(t, "alex", all[0].RevokedBy)
}

func TestTimedMute(t *testing.T) {
	out, err := run(t, append(sqliteArgs(t), "--format", "json", "mute", "add", "steve", "-d", "1h")...)
	require.NoError(t, err)
	var added []punishmentView
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.Len(t, added, 1)
	require.NotNil(t, added[0].Expires)
	assert.True(t, added[0].Expires.After(added[0].Created))
}

func TestRawCommands(t *testing.T) {
	base := sqliteArgs(t)

	_, err := run(t, append(base, "exec", "CREATE TABLE notes (id INTEGER, body TEXT)")...)
	require.NoError(t, err)
	_, err = run(t, append(base, "exec", "INSERT INTO notes (id, body) VALUES (?, ?)", "1", "hello")...)
	require.NoError(t, err)
	_, err = run(t, append(base, "exec", "INSERT INTO notes (id, body) VALUES (?, ?)", "2", "world")...)
	require.NoError(t, err)

	out, err := run(t, append(base, "index", "notes", "id", "--unique")...)
	require.NoError(t, err)
	assert.Equal(t, "index on notes.id ready\n", out)

	out, err = run(t, append(base, "--format", "json", "select", "notes", "--where", "id = ?", "--arg", "2")...)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2,"body":"world"}]`, out)

	out, err = run(t, append(base, "select", "notes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 rows)")

	out, err = run(t, append(base, "--format", "json", "query", "SELECT body FROM notes WHERE id = ?", "1")...)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"body":"hello"}]`, out)

	_, err = run(t, append(base, "select", "missing")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestUserNotFound(t *testing.T) {
	_, err := run(t, append(sqliteArgs(t), "user", "nobody")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestDocumentFilter(t *testing.T) {
	opts := &SelectOptions{
		RootOptions: &RootOptions{},
		Where:       "#t = :t AND #a = :a",
		Names:       []string{"#t=target", "#a=active"},
		Values:      []string{":t=steve", ":a=true"},
	}
	f, err := opts.filter(core.DriverDocument)
	require.NoError(t, err)
	doc, ok := f.(core.DocumentFilter)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"#t": "target", "#a": "active"}, doc.Names)
	assert.Equal(t, []string{":a", ":t"}, doc.Values.Keys())
	assert.Equal(t, true, doc.Values.Value(":a"))
	assert.Equal(t, "steve", doc.Values.Value(":t"))

	opts.Names = []string{"broken"}
	_, err = opts.filter(core.DriverDocument)
	assert.Error(t, err)

	f, err = opts.filter(core.DriverRelationalNetworked)
	require.NoError(t, err)
	assert.IsType(t, core.SQLFilter{}, f)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, false, parseValue("false"))
	assert.Equal(t, "False", parseValue("False"))
	assert.Equal(t, "steve", parseValue("steve"))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
}
