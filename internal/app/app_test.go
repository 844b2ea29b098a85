package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/data"
	"github.com/five82/toolroom/internal/mockapi"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
	"github.com/five82/toolroom/internal/workflow"
)

func demoLayer(t *testing.T) (context.Context, *api.Client, *data.Layer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url, err := startDemoBackend(ctx, zap.NewNop())
	require.NoError(t, err)

	client, err := api.NewClient(api.Options{BaseURL: url, APIKey: mockapi.DefaultAPIKey})
	require.NoError(t, err)
	store := state.NewStore()
	t.Cleanup(store.Close)
	return ctx, client, data.New(query.NewClient(store), data.ServicesFrom(client), nil)
}

func TestExportWorkbook_RequiresSession(t *testing.T) {
	ctx, client, layer := demoLayer(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	err := exportWorkbook(ctx, layer, client, path, workflow.DefaultThresholds)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportWorkbook_WritesSeededData(t *testing.T) {
	ctx, client, layer := demoLayer(t)
	_, err := layer.Login(ctx, "admin", "admin")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, exportWorkbook(ctx, layer, client, path, workflow.DefaultThresholds))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.GreaterOrEqual(t, len(f.GetSheetList()), 2)
}
