package collector

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/han-fei/perfagent/agent/internal/models"
)

// ShardStateSampler 将集群快照展开为分片副本记录。
//
// 顺序是下游按位置解码所依赖的格式约定：索引保持快照中的顺序，
// 同一索引内分片编号升序，同一分片内主分片在前、副本分片在后
// （副本之间保持快照中的顺序）。没有任何副本的分片编号不输出。
type ShardStateSampler struct{}

// Sample 采样，不修改快照
func (ShardStateSampler) Sample(state *models.ClusterState) ([]models.ShardStateRecord, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrMalformedSnapshot)
	}

	records := make([]models.ShardStateRecord, 0)
	seen := make(map[string]struct{})

	for _, table := range state.RoutingTable {
		if table.Index == "" {
			return nil, fmt.Errorf("%w: index with empty name", ErrMalformedSnapshot)
		}
		if !utf8.ValidString(table.Index) {
			return nil, fmt.Errorf("%w: index name %q is not valid UTF-8", ErrMalformedSnapshot, table.Index)
		}

		byShard := make(map[int][]models.ShardRouting)
		for _, routing := range table.Shards {
			if routing.ShardID < 0 {
				return nil, fmt.Errorf("%w: index %s has negative shard id %d",
					ErrMalformedSnapshot, table.Index, routing.ShardID)
			}
			if routing.Index != "" && routing.Index != table.Index {
				return nil, fmt.Errorf("%w: shard of index %s listed under %s",
					ErrMalformedSnapshot, routing.Index, table.Index)
			}
			byShard[routing.ShardID] = append(byShard[routing.ShardID], routing)
		}

		shardIDs := make([]int, 0, len(byShard))
		for id := range byShard {
			shardIDs = append(shardIDs, id)
		}
		sort.Ints(shardIDs)

		for _, id := range shardIDs {
			copies := byShard[id]
			for _, primary := range []bool{true, false} {
				for _, routing := range copies {
					if routing.Primary != primary {
						continue
					}
					record := newShardStateRecord(state, table.Index, routing)
					if err := checkText(record); err != nil {
						return nil, err
					}
					if routing.Assigned() {
						key := fmt.Sprintf("%s/%d/%s/%s", table.Index, id, record.ShardType, routing.CurrentNodeID)
						if _, dup := seen[key]; dup {
							return nil, fmt.Errorf("%w: duplicate copy %s", ErrMalformedSnapshot, key)
						}
						seen[key] = struct{}{}
					}
					records = append(records, record)
				}
			}
		}
	}
	return records, nil
}

func newShardStateRecord(state *models.ClusterState, index string, routing models.ShardRouting) models.ShardStateRecord {
	shardState := string(routing.State)
	if shardState == "" {
		if routing.Assigned() {
			shardState = string(models.ShardStarted)
		} else {
			shardState = string(models.ShardUnassigned)
		}
	}

	return models.ShardStateRecord{
		ShardType:          models.ShardTypeOf(routing.Primary),
		IndexName:          index,
		ShardID:            routing.ShardID,
		NodeName:           nodeName(state, routing.CurrentNodeID),
		ShardState:         shardState,
		RelocatingNodeName: nodeName(state, routing.RelocatingNodeID),
	}
}

// checkText 记录中的文本字段必须是合法 UTF-8，否则编码时会被替换字符改写
func checkText(r models.ShardStateRecord) error {
	for _, field := range []struct{ name, value string }{
		{"nodeName", r.NodeName},
		{"shardState", r.ShardState},
		{"relocatingNodeName", r.RelocatingNodeName},
	} {
		if !utf8.ValidString(field.value) {
			return fmt.Errorf("%w: %s %q of %s/%d is not valid UTF-8",
				ErrMalformedSnapshot, field.name, field.value, r.IndexName, r.ShardID)
		}
	}
	return nil
}

// nodeName 已分配但节点不在快照中时退回节点ID
func nodeName(state *models.ClusterState, nodeID string) string {
	if nodeID == "" {
		return ""
	}
	if name := state.NodeName(nodeID); name != "" {
		return name
	}
	return nodeID
}
