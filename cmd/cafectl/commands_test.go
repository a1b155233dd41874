package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cafenet/internal/config"
	"github.com/MrJamesThe3rd/cafenet/internal/http/auth"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger/memstore"
)

func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	cfg = &config.Config{}
	cfg.DB.Driver = config.DriverMemory
	cfg.Backup.Dir = t.TempDir()
	cfg.Backup.Retain = 5
	cfg.Auth.TokenTTL = time.Hour

	var out bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	return cmd, &out
}

func TestBackupList(t *testing.T) {
	cmd, out := testCommand(t)

	require.NoError(t, runBackupList(cmd, nil))
	assert.Contains(t, out.String(), "no backups")

	store := memstore.New()
	_, err := newLedger(store).AddProduct(context.Background(), ledger.AddParams{Name: "Coffee", Quantity: 3})
	require.NoError(t, err)

	path, err := newCoordinator(store).BackupNow(context.Background())
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runBackupList(cmd, nil))
	assert.Contains(t, out.String(), filepath.Base(path))
}

func TestBackupRestore_RequiresForce(t *testing.T) {
	cmd, _ := testCommand(t)
	forceRestore = false

	err := runBackupRestore(cmd, []string{"inventory_backup_20260101_000000.json.gz"})
	assert.ErrorContains(t, err, "--force")
}

func TestOpenStore_RefusesMemory(t *testing.T) {
	cmd, _ := testCommand(t)

	_, _, err := openStore(cmd.Context())
	assert.ErrorContains(t, err, "persistent store")
}

func TestToken(t *testing.T) {
	cmd, out := testCommand(t)

	assert.ErrorContains(t, runToken(cmd, nil), "AUTH_SECRET")

	cfg.Auth.Secret = "secret"
	tokenSubject = "till-1"
	tokenRole = "manager"

	require.NoError(t, runToken(cmd, nil))

	claims, err := auth.New("secret", time.Hour).ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "till-1", claims.Subject)
	assert.Equal(t, "manager", claims.Role)
}
