package cluster

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/han-fei/perfagent/agent/internal/models"
)

const endpointClusterState = "/_cluster/state/nodes,routing_table"

// HTTPConfig 本地引擎连接配置
type HTTPConfig struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// HTTPProvider 通过引擎的 _cluster/state 接口获取快照
type HTTPProvider struct {
	http   *http.Client
	config HTTPConfig
}

// NewHTTPProvider 创建 HTTP 集群状态来源
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	return &HTTPProvider{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}, nil
}

// clusterStateResponse _cluster/state 响应中用到的部分
type clusterStateResponse struct {
	ClusterName string `json:"cluster_name"`
	Nodes       map[string]struct {
		Name             string `json:"name"`
		TransportAddress string `json:"transport_address"`
	} `json:"nodes"`
	RoutingTable struct {
		Indices map[string]struct {
			Shards map[string][]struct {
				State          string  `json:"state"`
				Primary        bool    `json:"primary"`
				Node           *string `json:"node"`
				RelocatingNode *string `json:"relocating_node"`
				Shard          int     `json:"shard"`
				Index          string  `json:"index"`
			} `json:"shards"`
		} `json:"indices"`
	} `json:"routing_table"`
}

// State 实现 StateProvider
func (p *HTTPProvider) State(ctx context.Context) (*models.ClusterState, error) {
	body, err := p.doGet(ctx, endpointClusterState)
	if err != nil {
		return nil, fmt.Errorf("get cluster state: %w", err)
	}

	var resp clusterStateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode cluster state: %w", err)
	}
	return translate(&resp)
}

// translate 转换为快照。JSON 对象没有顺序，索引按名称、分片按编号排序。
func translate(resp *clusterStateResponse) (*models.ClusterState, error) {
	state := &models.ClusterState{
		ClusterName: resp.ClusterName,
		Nodes:       make(map[string]models.DiscoveryNode, len(resp.Nodes)),
	}
	for id, n := range resp.Nodes {
		state.Nodes[id] = models.DiscoveryNode{ID: id, Name: n.Name, Address: n.TransportAddress}
	}

	indexNames := make([]string, 0, len(resp.RoutingTable.Indices))
	for name := range resp.RoutingTable.Indices {
		indexNames = append(indexNames, name)
	}
	sort.Strings(indexNames)

	for _, name := range indexNames {
		idx := resp.RoutingTable.Indices[name]

		shardIDs := make([]int, 0, len(idx.Shards))
		keys := make(map[int]string, len(idx.Shards))
		for key := range idx.Shards {
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("index %s: invalid shard id %q", name, key)
			}
			shardIDs = append(shardIDs, id)
			keys[id] = key
		}
		sort.Ints(shardIDs)

		table := models.IndexRoutingTable{Index: name}
		for _, id := range shardIDs {
			for _, sr := range idx.Shards[keys[id]] {
				routing := models.ShardRouting{
					Index:   name,
					ShardID: id,
					Primary: sr.Primary,
					State:   models.ShardRoutingState(sr.State),
				}
				if sr.Node != nil {
					routing.CurrentNodeID = *sr.Node
				}
				if sr.RelocatingNode != nil {
					routing.RelocatingNodeID = *sr.RelocatingNode
				}
				table.Shards = append(table.Shards, routing)
			}
		}
		state.RoutingTable = append(state.RoutingTable, table)
	}
	return state, nil
}

// doGet 发起 GET 请求，非 2xx 返回错误
func (p *HTTPProvider) doGet(ctx context.Context, path string) ([]byte, error) {
	url := strings.TrimRight(p.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if p.config.Username != "" || p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseBytes = 64 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
