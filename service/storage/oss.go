package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"doc-ingest-backend/config"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

const presignExpiration = 15 * time.Minute

// Client OSS对象存储客户端，原始文档的持久化层
type Client struct {
	client *oss.Client
	bucket string
}

func NewClient() *Client {
	cfg := &oss.Config{
		Region: oss.Ptr(config.Cfg.OSS.Region),
		CredentialsProvider: credentials.NewStaticCredentialsProvider(
			config.Cfg.OSS.AccessKeyID,
			config.Cfg.OSS.AccessKeySecret,
		),
	}

	return &Client{
		client: oss.NewClient(cfg),
		bucket: config.Cfg.OSS.BucketName,
	}
}

// ObjectKey 由归属和文档ID推导的确定性存储路径
func ObjectKey(ownerID, documentID, filename string) string {
	return ownerID + "/" + documentID + "/" + filename
}

// PutObject 同步写入，返回时对象已持久化
func (c *Client) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket: oss.Ptr(c.bucket),
		Key:    oss.Ptr(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s to oss: %v", key, err)
	}
	return nil
}

func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := c.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(c.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from oss: %v", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %v", key, err)
	}
	return data, nil
}

func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
		Bucket: oss.Ptr(c.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from oss: %v", key, err)
	}
	return nil
}

// PresignGetObject 生成带签名的临时下载链接
func (c *Client) PresignGetObject(ctx context.Context, key string) (string, error) {
	result, err := c.client.Presign(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(c.bucket),
		Key:    oss.Ptr(key),
	}, oss.PresignExpires(presignExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %v", key, err)
	}
	return result.URL, nil
}
