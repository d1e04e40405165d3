package models

// ShardType 分片角色
type ShardType string

const (
	ShardPrimary ShardType = "SHARD_PRIMARY"
	ShardReplica ShardType = "SHARD_REPLICA"
)

// ShardTypeOf 根据是否为主分片返回角色
func ShardTypeOf(primary bool) ShardType {
	if primary {
		return ShardPrimary
	}
	return ShardReplica
}

// ShardStateRecord 单个分片副本的一次观测结果
type ShardStateRecord struct {
	ShardType          ShardType `json:"shardType"`
	IndexName          string    `json:"indexName"`
	ShardID            int       `json:"shardId"`
	NodeName           string    `json:"nodeName"`
	ShardState         string    `json:"shardState"`
	RelocatingNodeName string    `json:"relocatingNodeName,omitempty"`
}

// Event 事件队列中的一条记录
type Event struct {
	Key   string `json:"key"`   // 存储路径
	Tag   string `json:"tag"`   // 指标名称
	Value string `json:"value"` // 文本负载
	Epoch int64  `json:"epoch"` // 时间桶
}
