package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stash/internal/engine"
)

type cliResult struct {
	stdout string
	stderr string
	code   int
}

// runCLI executes one CLI invocation with fresh flags. opts carries the
// test overrides that survive between invocations.
func runCLI(t *testing.T, opts *RootOptions, args ...string) cliResult {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := execute(newRootCommand(opts), opts, args, stdout, stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stash", cmd.Use)
	assert.Contains(t, cmd.Long, "STASH_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"put", "get", "list", "count", "rm", "clear", "schemas"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"store", "path", "name", "schemas", "debounce", "keys", "metrics"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("STASH_STORE", "files")
	t.Setenv("STASH_PATH", "/var/lib/stash")
	t.Setenv("STASH_DEBOUNCE", "250ms")
	t.Setenv("STASH_MINIO_BUCKET", "archive")
	t.Setenv("STASH_KEYS", "uuid7")

	opts := &RootOptions{}
	cmd := newRootCommand(opts)

	assert.Equal(t, "files", cmd.PersistentFlags().Lookup("store").DefValue)
	assert.Equal(t, "/var/lib/stash", cmd.PersistentFlags().Lookup("path").DefValue)
	assert.Equal(t, "250ms", cmd.PersistentFlags().Lookup("debounce").DefValue)
	assert.Equal(t, "uuid7", cmd.PersistentFlags().Lookup("keys").DefValue)
	assert.Equal(t, "archive", opts.Minio.Bucket)
	assert.Equal(t, "localhost:9000", opts.Minio.Endpoint)
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("STASH_DEBOUNCE", "soon")

	res := runCLI(t, &RootOptions{}, "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid environment")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "--format", "invalid", "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid format")
}

func TestStoreValidation(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "--store", "redis", "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `invalid store "redis"`)

	res = runCLI(t, &RootOptions{}, "--store", "sqlite", "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "--path is required")
}

func TestWorkflow_FilesStore(t *testing.T) {
	dir := t.TempDir()
	opts := &RootOptions{Keys: engine.NewFixedGenerator("t1", "t2")}
	store := []string{"--store", "files", "--path", dir}
	cli := func(args ...string) cliResult {
		return runCLI(t, opts, append(store, args...)...)
	}
	g := newGoldie(t)

	res := cli("put", "todo", "title=milk", "done=false")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "t1\t{\"done\":false,\"title\":\"milk\"}\n", res.stdout)

	res = cli("put", "todo", "title=eggs")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = cli("put", "todo", "--key", "t1", "done=true")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "t1\t{\"done\":true,\"title\":\"milk\"}\n", res.stdout)

	res = cli("list", "todo")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	g.Assert(t, "list", []byte(res.stdout))

	res = cli("list", "todo", "--where", "done=true", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	g.Assert(t, "list_where_json", []byte(res.stdout))

	res = cli("list", "todo", "--keys", "t2,missing", "--limit", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "t2\t{\"title\":\"eggs\"}\n", res.stdout)

	res = cli("count", "todo")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "2\n", res.stdout)

	res = cli("rm", "todo", "t2", "missing")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "t2\n", res.stdout)

	res = cli("get", "todo", "t2")
	assert.Equal(t, ExitFailure, res.code)
	g.Assert(t, "get_missing", []byte(res.stderr))

	res = cli("get", "todo", "t2", "--format", "json")
	assert.Equal(t, ExitFailure, res.code)
	g.Assert(t, "get_missing_json", []byte(res.stdout))

	res = cli("schemas")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "todo\n", res.stdout)

	res = cli("clear")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "cleared all schemas\n", res.stdout)

	res = cli("count", "todo", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "{\"status\":\"ok\",\"data\":0}\n", res.stdout)
}

func TestWorkflow_SQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stash.db")
	opts := &RootOptions{}
	store := []string{"--store", "sqlite", "--path", path, "--name", "app"}

	for range 3 {
		res := runCLI(t, opts, append(store, "put", "note", "body=hi")...)
		require.Equal(t, ExitSuccess, res.code, res.stderr)
	}

	res := runCLI(t, opts, append(store, "count", "note")...)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "3\n", res.stdout)

	res = runCLI(t, opts, "--store", "sqlite", "--path", path, "count", "note")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "0\n", res.stdout, "another name sees nothing")

	res = runCLI(t, opts, append(store, "clear", "note")...)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "cleared note\n", res.stdout)
}

func TestWorkflow_SchemaDefinitions(t *testing.T) {
	dir := t.TempDir()
	defs := filepath.Join(dir, "schemas.yaml")
	require.NoError(t, os.WriteFile(defs, []byte(`schemas:
  tasks:
    name: todo
    default:
      done: false
`), 0o644))

	opts := &RootOptions{Keys: engine.NewFixedGenerator("k1")}
	store := []string{"--store", "files", "--path", filepath.Join(dir, "data"), "--schemas", defs}

	res := runCLI(t, opts, append(store, "put", "tasks")...)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "k1\t{\"done\":false}\n", res.stdout)

	res = runCLI(t, opts, append(store, "count", "todo")...)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "1\n", res.stdout)
}

func TestInvalidSchemaFile(t *testing.T) {
	defs := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(defs, []byte("tables: []\n"), 0o644))

	res := runCLI(t, &RootOptions{}, "--schemas", defs, "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "failed to load schema definitions")
}

func TestPutRejectsBadAssignment(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "put", "todo", "title")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `invalid assignment "title"`)
}

func TestListFlagsExclusive(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "list", "todo", "--where", "a=1", "--keys", "k")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "none of the others can be")
}

func TestArgumentErrors(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "get", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "Error [COMMAND_ERROR]")
}

func TestMemoryStoreIsPerInvocation(t *testing.T) {
	opts := &RootOptions{Keys: engine.NewFixedGenerator("m1")}

	res := runCLI(t, opts, "put", "todo", "title=x", "--format", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.JSONEq(t, `{"status":"ok","data":{"key":"m1","props":{"title":"x"}}}`, res.stdout)

	res = runCLI(t, opts, "count", "todo")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "0\n", res.stdout)
}

func TestKeyKinds(t *testing.T) {
	tests := []struct {
		kind  string
		check func(t *testing.T, key string)
	}{
		{"base36", func(t *testing.T, key string) {
			assert.Regexp(t, `^[0-9a-z]{8}$`, key)
		}},
		{"uuid7", func(t *testing.T, key string) {
			parsed, err := uuid.Parse(key)
			require.NoError(t, err)
			assert.Equal(t, uuid.Version(7), parsed.Version())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			res := runCLI(t, &RootOptions{}, "--keys", tt.kind, "--format", "json", "put", "todo", "title=x")
			require.Equal(t, ExitSuccess, res.code, res.stderr)

			var resp struct {
				Data record `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
			tt.check(t, resp.Data.Key)
		})
	}
}

func TestKeyKindValidation(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "--keys", "serial", "count", "todo")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `invalid key kind "serial"`)
}

func TestMetricsFlag(t *testing.T) {
	res := runCLI(t, &RootOptions{}, "--store", "files", "--path", t.TempDir(), "--metrics", "put", "todo", "title=x")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(res.stderr), "\n") {
		name, _, _ := strings.Cut(line, " ")
		names = append(names, name)
	}
	assert.Contains(t, names, "stash_flush_total")
	assert.Contains(t, names, `stash_written_keys_total{op="set"}`)

	res = runCLI(t, &RootOptions{}, "put", "todo", "title=x")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Empty(t, res.stderr, "metrics are printed only on request")
}
