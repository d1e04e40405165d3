package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/han-fei/perfagent/agent/internal/models"
)

// FileSink 按事件的存储路径写文件。
// 先写临时文件再改名，读取端不会看到写了一半的文件；同一路径以最后一次为准。
type FileSink struct{}

// NewFileSink 创建文件写入端
func NewFileSink() *FileSink {
	return &FileSink{}
}

// Name 实现 Sink
func (s *FileSink) Name() string {
	return "file"
}

// Write 实现 Sink
func (s *FileSink) Write(ctx context.Context, events []models.Event) error {
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(e.Key, []byte(e.Value)); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("事件缺少存储路径")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录 %s 失败: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("重命名 %s 失败: %w", path, err)
	}
	return nil
}

// Close 实现 Sink
func (s *FileSink) Close() error {
	return nil
}
