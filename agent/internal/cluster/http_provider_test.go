package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/han-fei/perfagent/agent/internal/models"
)

const clusterStateBody = `{
  "cluster_name": "es-test",
  "nodes": {
    "n1": {"name": "node-1", "transport_address": "10.0.0.1:9300"},
    "n2": {"name": "node-2", "transport_address": "10.0.0.2:9300"}
  },
  "routing_table": {
    "indices": {
      "logs": {"shards": {
        "1": [{"state":"STARTED","primary":false,"node":"n1","relocating_node":null,"shard":1,"index":"logs"},
              {"state":"STARTED","primary":true,"node":"n2","relocating_node":null,"shard":1,"index":"logs"}],
        "0": [{"state":"RELOCATING","primary":true,"node":"n1","relocating_node":"n2","shard":0,"index":"logs"}]
      }},
      "events": {"shards": {
        "0": [{"state":"UNASSIGNED","primary":true,"node":null,"relocating_node":null,"shard":0,"index":"events"}]
      }}
    }
  }
}`

func newTestProvider(t *testing.T, baseURL string) *HTTPProvider {
	t.Helper()
	p, err := NewHTTPProvider(HTTPConfig{BaseURL: baseURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return p
}

func TestHTTPProvider_State(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_cluster/state/nodes,routing_table", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(clusterStateBody))
	}))
	defer srv.Close()

	state, err := newTestProvider(t, srv.URL).State(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "es-test", state.ClusterName)
	assert.Equal(t, "node-1", state.NodeName("n1"))
	assert.Equal(t, "", state.NodeName("missing"))

	require.Len(t, state.RoutingTable, 2)
	assert.Equal(t, "events", state.RoutingTable[0].Index)
	assert.Equal(t, "logs", state.RoutingTable[1].Index)

	events := state.RoutingTable[0].Shards
	require.Len(t, events, 1)
	assert.False(t, events[0].Assigned())
	assert.Equal(t, models.ShardUnassigned, events[0].State)

	logs := state.RoutingTable[1].Shards
	require.Len(t, logs, 3)
	assert.Equal(t, 0, logs[0].ShardID)
	assert.Equal(t, "n2", logs[0].RelocatingNodeID)
	assert.Equal(t, 1, logs[1].ShardID)
	assert.Equal(t, 1, logs[2].ShardID)
}

func TestHTTPProvider_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "elastic" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"cluster_name":"c","nodes":{},"routing_table":{"indices":{}}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Username: "elastic", Password: "secret"})
	require.NoError(t, err)
	state, err := p.State(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.RoutingTable)
}

func TestHTTPProvider_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "master not discovered", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestProvider(t, srv.URL).State(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer srv.Close()

		_, err := newTestProvider(t, srv.URL).State(context.Background())
		assert.Error(t, err)
	})

	t.Run("bad shard id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"routing_table":{"indices":{"x":{"shards":{"abc":[]}}}}}`))
		}))
		defer srv.Close()

		_, err := newTestProvider(t, srv.URL).State(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := NewHTTPProvider(HTTPConfig{})
		assert.Error(t, err)
	})
}

func TestStaticProvider(t *testing.T) {
	_, err := StaticProvider{}.State(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	snap := &models.ClusterState{ClusterName: "c"}
	got, err := StaticProvider{Snapshot: snap}.State(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, got)

	var calls int
	f := ProviderFunc(func(context.Context) (*models.ClusterState, error) {
		calls++
		return snap, nil
	})
	_, _ = f.State(context.Background())
	assert.Equal(t, 1, calls)
}
