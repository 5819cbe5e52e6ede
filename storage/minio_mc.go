package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByType       map[string]int64
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ListObjects 列出前缀下的对象并统计
func (s *MinioStore) ListObjects(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{ByType: make(map[string]int64)}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		stats.ByType[inferContentType(object.Key)] += object.Size

		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, stats, nil
}

// PrintBucketStatus 打印存储桶状态
func (s *MinioStore) PrintBucketStatus(ctx context.Context, w io.Writer, prefix string, withObjects bool) error {
	objects, stats, err := s.ListObjects(ctx, prefix, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "存储桶: %s\n", s.bucket)
	fmt.Fprintf(w, "前缀: %s\n", prefix)
	fmt.Fprintf(w, "文件数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "总大小: %s\n", FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "最后更新: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-10s %s\n", t, FormatSize(stats.ByType[t]))
	}

	if withObjects {
		for _, obj := range objects {
			fmt.Fprintf(w, "  ├─ %s (%s, %s)\n", obj.Key, FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

// DeletePrefix 递归删除前缀下的所有对象，返回删除数量
func (s *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if strings.TrimSpace(prefix) == "" {
		return 0, fmt.Errorf("删除操作需要指定前缀")
	}

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var toDelete []minio.ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return 0, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		toDelete = append(toDelete, object)
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	removeCh := make(chan minio.ObjectInfo, len(toDelete))
	for _, obj := range toDelete {
		removeCh <- obj
	}
	close(removeCh)

	for rErr := range s.client.RemoveObjects(ctx, s.bucket, removeCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return 0, fmt.Errorf("删除对象 %s 失败: %w", rErr.ObjectName, rErr.Err)
		}
	}
	return len(toDelete), nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// inferContentType 从文件名推断大类
func inferContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg":
		return "image"
	case ".pdf", ".doc", ".docx", ".txt", ".md":
		return "document"
	default:
		return "other"
	}
}
