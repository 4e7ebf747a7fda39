package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/config"
	"sdmox/pkg/logger"
)

func directoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/service/o/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/service/o/" {
			_, _ = w.Write([]byte(`[{"uuid": "org-1"}]`))
			return
		}
		_, _ = w.Write([]byte(`{"data": {"items": [
			{"uuid": "uuid-6", "user_key": "NY6-niveau"},
			{"uuid": "uuid-b", "user_key": "Afdelings-niveau"}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(dirURL string) *config.Settings {
	s := config.Defaults()
	s.Directory.URL = dirURL
	s.Registry.Institution = "XX"
	s.Registry.Username = "user"
	s.Registry.Password = "secret"
	s.AMQP.Host = "localhost"
	s.LevelKeys = []string{"NY6-niveau", "Afdelings-niveau"}
	return &s
}

func TestNew_WithoutDatabase(t *testing.T) {
	srv := directoryServer(t)

	a, err := New(context.Background(), testSettings(srv.URL), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Service)
	assert.Nil(t, a.Journal)
	assert.Nil(t, a.Pool)

	_, err = a.NewRelay()
	assert.Error(t, err)

	families, err := a.Gatherer.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNew_UnknownLevel(t *testing.T) {
	srv := directoryServer(t)
	s := testSettings(srv.URL)
	s.LevelKeys = []string{"NY6-niveau", "NY5-niveau"}

	_, err := New(context.Background(), s, logger.Nop())
	assert.ErrorContains(t, err, "load level hierarchy")
}
