package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	_ "github.com/odyssey-erp/odyssey-desk/internal/testing/guard"
)

const testViews = `
views:
  - name: products
    title: Productos
    path: /api/productos
    mode: client
    fields: {search: [codigo]}
    columns:
      - {key: codigo, label: Código}
      - {key: descripcion, label: Descripción}
`

type fakeERP struct {
	*httptest.Server
	listCalls atomic.Int32
}

func newFakeERP(t *testing.T, n int) *fakeERP {
	t.Helper()
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"id": i + 1, "codigo": fmt.Sprintf("P-%03d", i+1), "descripcion": "Artículo"}
	}
	erp := &fakeERP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"items_por_pagina": 10})
	})
	mux.HandleFunc("/api/productos", func(w http.ResponseWriter, _ *http.Request) {
		erp.listCalls.Add(1)
		_ = json.NewEncoder(w).Encode(items)
	})
	erp.Server = httptest.NewServer(mux)
	t.Cleanup(erp.Close)
	return erp
}

// setupEnv points the configuration at erp and a throwaway redis. An empty
// redis address keeps preferences in memory.
func setupEnv(t *testing.T, erp *fakeERP, redisAddr string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "views.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testViews), 0o600))
	t.Setenv("VIEWS_FILE", path)
	t.Setenv("BACKEND_URL", erp.URL)
	t.Setenv("REDIS_ADDR", redisAddr)
	if redisAddr == "" {
		t.Setenv("PREFS_STORE", "memory")
	} else {
		t.Setenv("PREFS_STORE", "redis")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCmd("test")
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestViewsListsRegistry(t *testing.T) {
	setupEnv(t, newFakeERP(t, 0), "")
	out, err := execute(t, "views")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "products")
	assert.Contains(t, out, "Productos")
}

func TestPagePrintsTableAndFooter(t *testing.T) {
	setupEnv(t, newFakeERP(t, 25), "")
	out, err := execute(t, "page", "products", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "CÓDIGO")
	assert.Contains(t, out, "P-011")
	assert.Contains(t, out, "P-020")
	assert.NotContains(t, out, "P-021")
	assert.Contains(t, out, "Mostrando 11–20 de 25 · Página 2/3  1 [2] 3")
}

func TestPageClampsAndFilters(t *testing.T) {
	setupEnv(t, newFakeERP(t, 25), "")
	out, err := execute(t, "page", "products", "--page", "9", "--search", "P-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Página 1/1")
	assert.Contains(t, out, "P-025")

	out, err = execute(t, "page", "products", "--search", "nada")
	require.NoError(t, err)
	assert.Contains(t, out, "Sin resultados.")
	assert.NotContains(t, out, "Página")
}

func TestPageJSON(t *testing.T) {
	setupEnv(t, newFakeERP(t, 3), "")
	out, err := execute(t, "page", "products", "--json")
	require.NoError(t, err)
	var decoded struct {
		List struct {
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 3, decoded.List.Pagination.Total)
}

func TestPageUnknownView(t *testing.T) {
	setupEnv(t, newFakeERP(t, 3), "")
	_, err := execute(t, "page", "nope")
	require.Error(t, err)
}

func TestPrefsRoundTripThroughRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	setupEnv(t, newFakeERP(t, 3), srv.Addr())

	out, err := execute(t, "prefs", "get", "products")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)

	out, err = execute(t, "prefs", "set", "products", "25")
	require.NoError(t, err)
	assert.Contains(t, out, "25 filas por página")

	out, err = execute(t, "prefs", "get", "products")
	require.NoError(t, err)
	assert.Equal(t, "25\n", out)

	out, err = execute(t, "prefs", "get", "products", "--scope", "web")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out, "scopes are independent")
}

func TestPrefsSetRejectsBadSize(t *testing.T) {
	setupEnv(t, newFakeERP(t, 3), "")
	_, err := execute(t, "prefs", "set", "products", "0")
	require.ErrorIs(t, err, shared.ErrInvalidPageSize)
	assert.Contains(t, err.Error(), "keeping 10")
}

func TestJobsWarmLocal(t *testing.T) {
	erp := newFakeERP(t, 3)
	setupEnv(t, erp, miniredis.RunT(t).Addr())
	out, err := execute(t, "jobs", "warm", "--local")
	require.NoError(t, err)
	assert.Contains(t, out, "warmed 1 views")
	assert.EqualValues(t, 1, erp.listCalls.Load())

	// served from the cache
	_, err = execute(t, "page", "products")
	require.NoError(t, err)
	assert.EqualValues(t, 1, erp.listCalls.Load())

	_, err = execute(t, "jobs", "invalidate", "--local")
	require.NoError(t, err)
	_, err = execute(t, "page", "products")
	require.NoError(t, err)
	assert.EqualValues(t, 2, erp.listCalls.Load())
}

func TestJobsNeedQueueWithoutRedis(t *testing.T) {
	setupEnv(t, newFakeERP(t, 3), "")
	_, err := execute(t, "jobs", "warm")
	require.ErrorIs(t, err, errNoQueue)
}

func TestBrowseNeedsTerminal(t *testing.T) {
	if isTerminal(os.Stdin) {
		t.Skip("stdin is a terminal")
	}
	setupEnv(t, newFakeERP(t, 3), "")
	_, err := execute(t, "browse", "products")
	require.ErrorIs(t, err, errNotInteractive)
}
