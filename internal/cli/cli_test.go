package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/config"
	"github.com/aryklein/sheetsync/internal/logging"
	"github.com/aryklein/sheetsync/internal/remote"
	"github.com/aryklein/sheetsync/internal/storage"
	"github.com/aryklein/sheetsync/internal/syncer"
)

type noopClient struct{}

func (noopClient) Get(ctx context.Context, id string) (*remote.Record, error) {
	return nil, common.ErrNotFound
}
func (noopClient) Create(ctx context.Context, rec *remote.Record) error { return nil }
func (noopClient) Update(ctx context.Context, rec *remote.Record) error { return nil }
func (noopClient) ListByOwner(ctx context.Context, ownerID string) ([]remote.Record, error) {
	return nil, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	repos, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.DB.Close() })

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	app := &App{
		cfg:   config.AppConfig{DatabasePath: "test.db", OwnerID: "u1"},
		repos: repos,
		log:   log,
	}
	app.engine = syncer.New(repos.DB, noopClient{}, "u1", log)
	t.Cleanup(app.engine.Close)

	return app
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestAddGetDelete(t *testing.T) {
	app := newTestApp(t)

	out, err := runCommand(t, newAddCommand(app),
		"--name", "Mira", "--system", "dnd5e", "--payload", `{"class":"wizard","level":3}`)
	require.NoError(t, err)

	id := string(bytes.TrimSpace([]byte(out)))
	require.NotEmpty(t, id)

	out, err = runCommand(t, newGetCommand(app), id)
	require.NoError(t, err)
	assert.Contains(t, out, "Name:    Mira")
	assert.Contains(t, out, "System:  dnd5e")
	assert.Contains(t, out, `"class":"wizard"`)

	_, err = runCommand(t, newDeleteCommand(app), id)
	require.NoError(t, err)

	_, err = runCommand(t, newGetCommand(app), id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_FilterAndCount(t *testing.T) {
	app := newTestApp(t)

	_, err := runCommand(t, newAddCommand(app),
		"--name", "Mira", "--system", "dnd5e", "--payload", `{"class":"wizard","level":3}`)
	require.NoError(t, err)
	_, err = runCommand(t, newAddCommand(app),
		"--name", "Brok", "--system", "dnd5e", "--payload", `{"class":"fighter","level":5}`)
	require.NoError(t, err)

	out, err := runCommand(t, newListCommand(app), "--class", "wizard")
	require.NoError(t, err)
	assert.Contains(t, out, "Mira")
	assert.NotContains(t, out, "Brok")
	assert.Contains(t, out, "1 of 1 sheet(s)")
}

func TestUpdate_MergesPayload(t *testing.T) {
	app := newTestApp(t)

	out, err := runCommand(t, newAddCommand(app),
		"--name", "Mira", "--system", "dnd5e", "--payload", `{"class":"wizard","level":3}`)
	require.NoError(t, err)
	id := string(bytes.TrimSpace([]byte(out)))

	out, err = runCommand(t, newUpdateCommand(app), id, "--payload", `{"level":4}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"level":4`)
	assert.Contains(t, out, `"class":"wizard"`)
}

func TestSync_ReportsOffline(t *testing.T) {
	app := newTestApp(t)

	out, err := runCommand(t, newSyncCommand(app))
	require.Error(t, err)
	assert.Contains(t, err.Error(), common.ErrOffline.Error())
	assert.Contains(t, out, "pushed:    0")
}

func TestStatus_BeforeFirstSync(t *testing.T) {
	app := newTestApp(t)

	_, err := runCommand(t, newAddCommand(app),
		"--name", "Mira", "--system", "dnd5e", "--payload", `{}`)
	require.NoError(t, err)

	out, err := runCommand(t, newStatusCommand(app))
	require.NoError(t, err)
	assert.Contains(t, out, "last sync: never")
	assert.Contains(t, out, "pending:   1 change(s)")
	assert.Contains(t, out, "state:     idle")
}

func TestReadPayloadArg_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"class":"rogue"}`), 0o600))

	p, err := readPayloadArg("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "rogue", p["class"])

	_, err = readPayloadArg(`{broken`)
	require.Error(t, err)
}
