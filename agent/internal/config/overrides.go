package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// OverrideSet 一组被点名的组件
type OverrideSet struct {
	Collectors []string `yaml:"collectors" json:"collectors"`
}

func (s OverrideSet) contains(name string) bool {
	for _, c := range s.Collectors {
		if c == name {
			return true
		}
	}
	return false
}

// Overrides 采集器开关快照，整体替换，不原地修改
type Overrides struct {
	Enable  OverrideSet `yaml:"enable" json:"enable"`
	Disable OverrideSet `yaml:"disable" json:"disable"`
}

// Gate 采集器启用判断
type Gate interface {
	IsCollectorEnabled(overrides *Overrides, name string) bool
}

// DefaultGate 基于开关快照的启用判断，无状态，可并发调用
type DefaultGate struct{}

// IsCollectorEnabled 实现 Gate
func (DefaultGate) IsCollectorEnabled(overrides *Overrides, name string) bool {
	return IsCollectorEnabled(overrides, name)
}

// IsCollectorEnabled 采集器仅在被显式启用且未被禁用时才运行。
// 名称区分大小写；未知名称与空快照均视为禁用。
func IsCollectorEnabled(overrides *Overrides, name string) bool {
	if overrides == nil || name == "" {
		return false
	}
	if overrides.Disable.contains(name) {
		return false
	}
	return overrides.Enable.contains(name)
}

// OverridesHolder 持有最新的开关快照，读写均无锁
type OverridesHolder struct {
	current atomic.Pointer[Overrides]
}

// NewOverridesHolder 创建快照持有者
func NewOverridesHolder(initial *Overrides) *OverridesHolder {
	h := &OverridesHolder{}
	if initial == nil {
		initial = &Overrides{}
	}
	h.current.Store(initial)
	return h
}

// Load 读取当前快照
func (h *OverridesHolder) Load() *Overrides {
	return h.current.Load()
}

// Store 替换快照
func (h *OverridesHolder) Store(o *Overrides) {
	if o == nil {
		o = &Overrides{}
	}
	h.current.Store(o)
}

// ParseOverrides 解析开关快照（YAML，兼容JSON）
func ParseOverrides(data []byte) (*Overrides, error) {
	o := &Overrides{}
	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("解析采集器开关失败: %w", err)
	}
	return o, nil
}

// LoadOverridesFile 从文件加载开关快照
func LoadOverridesFile(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取采集器开关文件失败: %w", err)
	}
	return ParseOverrides(data)
}

// WatchOverrides 监听开关文件，变化后重新加载并替换快照。
// 监听所在目录，以兼容编辑器先写临时文件再改名的保存方式。
// 解析失败时保留旧快照。ctx 结束时返回 nil。
func WatchOverrides(ctx context.Context, path string, holder *OverridesHolder) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听失败: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("监听目录 %s 失败: %w", dir, err)
	}

	target := filepath.Clean(path)
	log := zap.S()
	log.Infof("开始监听采集器开关文件: %s", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("文件监听事件通道已关闭")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := reloadOverrides(target, holder); err != nil {
				log.Warnf("重新加载采集器开关失败，保留旧配置: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("文件监听错误通道已关闭")
			}
			log.Warnf("文件监听错误: %v", err)
		}
	}
}

// reloadOverrides 重新加载开关文件，失败时不修改快照
func reloadOverrides(path string, holder *OverridesHolder) error {
	o, err := LoadOverridesFile(path)
	if err != nil {
		return err
	}
	holder.Store(o)
	zap.S().Infof("采集器开关已更新: 启用=%v 禁用=%v", o.Enable.Collectors, o.Disable.Collectors)
	return nil
}
