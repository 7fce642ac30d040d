package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/listing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second)
}

func TestListDecodesEnvelope(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`{"items":[{"id":7,"total":"1234.50"}],"total":42}`))
	})
	res, err := c.List(context.Background(), "/api/facturas", listing.Query{
		Page:    3,
		PerPage: 10,
		Filter: listing.FilterState{
			Search: " acme ",
			Dates:  listing.DateRange{Start: "2024-01-01"},
			Status: listing.StatusAll,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "7", res.Items[0].ID())
	assert.Equal(t, json.Number("7"), res.Items[0]["id"])

	q := got.URL.Query()
	assert.Equal(t, "/api/facturas", got.URL.Path)
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "10", q.Get("per_page"))
	assert.Equal(t, "acme", q.Get("search"))
	assert.Equal(t, "2024-01-01", q.Get("from"))
	assert.False(t, q.Has("to"))
	assert.False(t, q.Has("status"))
}

func TestListAcceptsBareArray(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	})
	res, err := c.List(context.Background(), "api/cheques", listing.Query{Filter: listing.FilterState{Search: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Empty(t, rawQuery, "client mode sends no filter parameters")
}

func TestRejectionCarriesServerMessageVerbatim(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{body: `{"error":"El período está cerrado"}`, want: "El período está cerrado"},
		{body: `{"message":"Movimiento inexistente"}`, want: "Movimiento inexistente"},
		{body: `{"detail":"Saldo insuficiente"}`, want: "Saldo insuficiente"},
		{body: `{"error":{"message":"Cuenta bloqueada"}}`, want: "Cuenta bloqueada"},
		{body: `not json`, want: genericRejection},
	}
	for _, tc := range cases {
		body, want := tc.body, tc.want
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(body))
		})
		err := c.SetReconciled(context.Background(), "1", "2", true)
		var rej *RejectionError
		require.True(t, errors.As(err, &rej), body)
		assert.Equal(t, http.StatusUnprocessableEntity, rej.Status)
		assert.Equal(t, want, rej.UserMessage(), body)
		assert.True(t, IsRejection(err))
	}
}

func TestServerErrorWrapsUpstream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Settings(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.False(t, IsRejection(err))
}

func TestTransportFailureWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClient(url, time.Second)
	_, err := c.List(context.Background(), "/api/facturas", listing.Query{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSetReconciledSendsPatch(t *testing.T) {
	var method, path string
	var body map[string]bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.SetReconciled(context.Background(), "12", "99", true))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/bancos/12/movimientos/99", path)
	assert.Equal(t, map[string]bool{"conciliado": true}, body)
}

func TestSettingsAndLookup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/config":
			_, _ = w.Write([]byte(`{"items_por_pagina":25}`))
		case "/api/clientes/buscar":
			assert.Equal(t, "acm", r.URL.Query().Get("search"))
			_, _ = w.Write([]byte(`{"items":[{"id":1,"nombre":"Acme"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	s, err := c.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, s.ItemsPerPage)

	items, err := c.Lookup("/api/clientes/buscar")(context.Background(), "acm")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme", items[0]["nombre"])

	_, err = c.Source("/api/nope").Fetch(context.Background(), listing.Query{})
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.True(t, rej.NotFound())
}
