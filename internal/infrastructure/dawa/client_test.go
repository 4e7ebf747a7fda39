package dawa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
)

func TestLookup_FallsBackToHistory(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		assert.Equal(t, "dar-1", r.URL.Query().Get("id"))
		assert.Equal(t, "mini", r.URL.Query().Get("struktur"))
		if r.URL.Path == "/historik/adresser" {
			_, _ = w.Write([]byte(`[{"id": "dar-1", "betegnelse": "Toftebjerghaven 4, 2750 Ballerup"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	label, err := New(Config{BaseURL: srv.URL}, srv.Client()).Lookup(context.Background(), "dar-1")
	require.NoError(t, err)

	assert.Equal(t, "Toftebjerghaven 4, 2750 Ballerup", label)
	assert.Equal(t, []string{"/adresser", "/adgangsadresser", "/historik/adresser"}, calls)
}

func TestLookup_NotFoundAnywhere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL + "/"}, srv.Client()).Lookup(context.Background(), "dar-x")
	assert.True(t, apperror.IsNotFound(err))
}

func TestLookup_EndpointFailureAborts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}, srv.Client()).Lookup(context.Background(), "dar-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeAddressResolution))
	assert.Equal(t, 1, calls)
}
