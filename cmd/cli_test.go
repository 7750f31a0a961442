package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filestore "github.com/bnema/gptmeter/internal/adapters/secrets/file"
	"github.com/bnema/gptmeter/internal/config"
	"github.com/bnema/gptmeter/internal/ports"
)

type cliEnv struct {
	dir        string
	ledgerPath string
	secretsDir string
}

// newCLIEnv isolates a test from the user's config, password store and
// working directory.
func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()

	dir := t.TempDir()
	env := cliEnv{
		dir:        dir,
		ledgerPath: filepath.Join(dir, "data.json"),
		secretsDir: filepath.Join(dir, "secrets"),
	}

	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("ADMIN_ID", "1001")
	t.Setenv("GPTMETER_LEDGER_BACKEND", "file")
	t.Setenv("GPTMETER_LEDGER_PATH", env.ledgerPath)
	t.Setenv("GPTMETER_LOG_LEVEL", "error")

	previous := newSecretStore
	newSecretStore = func() (ports.SecretStore, error) {
		return filestore.NewStore(env.secretsDir), nil
	}
	t.Cleanup(func() { newSecretStore = previous })

	return env
}

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionPrintsBuildVersion(t *testing.T) {
	newCLIEnv(t)

	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestLedgerShowEmpty(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := executeCLI(t, "ledger", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "accounts: 0")

	_, err = os.Stat(env.ledgerPath)
	assert.ErrorIs(t, err, os.ErrNotExist, "show must not create the ledger")
}

func TestLedgerShowRequiresAdmin(t *testing.T) {
	newCLIEnv(t)
	t.Setenv("ADMIN_ID", "")

	_, _, err := executeCLI(t, "ledger", "show")
	require.ErrorIs(t, err, config.ErrMissingSetting)
}

func TestLedgerCreditSeedsAndCreditsAdmin(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := executeCLI(t, "ledger", "credit", "1001", "100")
	require.NoError(t, err)
	assert.Equal(t, "Balance of 1001 is now 777877 units\n", stdout)

	_, err = os.Stat(env.ledgerPath)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, "ledger", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"Balance": 777877`)
	assert.Contains(t, stdout, `"ID": 1001`)
}

func TestLedgerCreditUnknownAccount(t *testing.T) {
	newCLIEnv(t)

	_, _, err := executeCLI(t, "ledger", "credit", "42", "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestLedgerCreditRejectsBadUnits(t *testing.T) {
	newCLIEnv(t)

	_, _, err := executeCLI(t, "ledger", "credit", "1001", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `units "lots" is not an integer`)
}

const legacyLedger = `{
    "global": {"requests": 3, "tokens": 1510},
    "42": {"requests": 3, "tokens": 1510, "balance": 28490, "name": "Ada", "username": "ada", "lastdate": "14.02.2026 08:00:00", "prompt": "None"}
}`

func TestLedgerImportLegacy(t *testing.T) {
	env := newCLIEnv(t)
	source := filepath.Join(env.dir, "old.json")
	require.NoError(t, os.WriteFile(source, []byte(legacyLedger), 0o600))

	stdout, _, err := executeCLI(t, "ledger", "import", source)
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 accounts, 3 requests, 1510 units\n", stdout)

	stdout, _, err = executeCLI(t, "ledger", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Ada @ada (42)")
	assert.Contains(t, stdout, "28490 units")

	written, err := os.ReadFile(env.ledgerPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"aggregate"`)
	assert.NotContains(t, string(written), `"global"`)
}

func TestLedgerImportRefusesToOverwrite(t *testing.T) {
	env := newCLIEnv(t)
	source := filepath.Join(env.dir, "old.json")
	require.NoError(t, os.WriteFile(source, []byte(legacyLedger), 0o600))

	_, _, err := executeCLI(t, "ledger", "credit", "1001", "1")
	require.NoError(t, err)

	_, _, err = executeCLI(t, "ledger", "import", source)
	require.ErrorIs(t, err, errLedgerExists)

	_, _, err = executeCLI(t, "ledger", "import", source, "--force")
	require.NoError(t, err)
}

func TestLedgerImportMissingSource(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := executeCLI(t, "ledger", "import", filepath.Join(env.dir, "missing.json"))
	require.Error(t, err)
}

func TestSecretSetAndDelete(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := executeCLI(t, "secret", "set", "telegram/token", "--value", "123:abc")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(env.secretsDir, "telegram", "token"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", string(content))

	_, _, err = executeCLI(t, "secret", "delete", "telegram/token")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(env.secretsDir, "telegram", "token"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSecretSetRequiresValueFlag(t *testing.T) {
	newCLIEnv(t)

	_, _, err := executeCLI(t, "secret", "set", "telegram/token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"value\" not set")
}

func TestServeReportsMissingCredentials(t *testing.T) {
	newCLIEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TELEGRAM_API_KEY", "")

	_, _, err := executeCLI(t, "serve")
	require.ErrorIs(t, err, config.ErrMissingSetting)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "TELEGRAM_API_KEY")
}

func TestRunWithSpinnerShowsLabel(t *testing.T) {
	var output bytes.Buffer

	err := runWithSpinner(context.Background(), &output, "Checking credentials...", func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Checking credentials")
}

func TestRunWithSpinnerReturnsTaskError(t *testing.T) {
	boom := errors.New("boom")

	err := runWithSpinner(context.Background(), &bytes.Buffer{}, "Working...", func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
