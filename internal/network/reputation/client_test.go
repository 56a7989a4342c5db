package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientLookup(t *testing.T) {
	t.Run("parses collaborator response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/203.0.113.7", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"country":"Germany","city":"Berlin","isp":"Hetzner Online","org":"Hetzner","as":"AS24940"}`))
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		rep, err := client.Lookup(context.Background(), "203.0.113.7")
		require.NoError(t, err)
		require.Equal(t, "Germany", rep.Country)
		require.Equal(t, "Berlin", rep.City)
		require.Equal(t, "AS24940", rep.ASN)
	})

	t.Run("server error degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, time.Second)
		rep, err := client.Lookup(context.Background(), "203.0.113.7")
		require.Error(t, err)
		require.Equal(t, "Unknown", rep.Country)
		require.Equal(t, "Unknown", rep.City)
	})

	t.Run("timeout degrades to unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, 20*time.Millisecond)
		rep, err := client.Lookup(context.Background(), "203.0.113.7")
		require.Error(t, err)
		require.Equal(t, "Unknown", rep.Country)
	})

	t.Run("unconfigured endpoint is unavailable", func(t *testing.T) {
		client := NewHTTPClient("", time.Second)
		rep, err := client.Lookup(context.Background(), "203.0.113.7")
		require.Error(t, err)
		require.Equal(t, "Unknown", rep.Country)
	})
}
