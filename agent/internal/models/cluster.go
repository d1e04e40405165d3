package models

// ShardRoutingState 分片副本的分配状态
type ShardRoutingState string

const (
	ShardUnassigned   ShardRoutingState = "UNASSIGNED"
	ShardInitializing ShardRoutingState = "INITIALIZING"
	ShardStarted      ShardRoutingState = "STARTED"
	ShardRelocating   ShardRoutingState = "RELOCATING"
)

// DiscoveryNode 集群节点
type DiscoveryNode struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"transport_address,omitempty"`
}

// ShardRouting 单个分片副本（主分片或副本分片）的路由信息
type ShardRouting struct {
	Index            string            `json:"index"`
	ShardID          int               `json:"shard"`
	Primary          bool              `json:"primary"`
	State            ShardRoutingState `json:"state"`
	CurrentNodeID    string            `json:"node,omitempty"`
	RelocatingNodeID string            `json:"relocating_node,omitempty"`
}

// Assigned 副本是否已分配到节点
func (s ShardRouting) Assigned() bool {
	return s.CurrentNodeID != ""
}

// IndexRoutingTable 单个索引的路由表
type IndexRoutingTable struct {
	Index  string         `json:"index"`
	Shards []ShardRouting `json:"shards"`
}

// ClusterState 集群状态快照。
// 由外部提供，采集器只读，不得修改。
type ClusterState struct {
	ClusterName  string                   `json:"cluster_name"`
	Nodes        map[string]DiscoveryNode `json:"nodes"`
	RoutingTable []IndexRoutingTable      `json:"routing_table"`
}

// NodeName 根据节点ID查找节点名称，未知节点返回空字符串
func (cs *ClusterState) NodeName(nodeID string) string {
	if cs == nil || nodeID == "" {
		return ""
	}
	if node, ok := cs.Nodes[nodeID]; ok {
		return node.Name
	}
	return ""
}
