package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/config"
)

// MinioClient wraps the MinIO client for task log retrieval and presigned
// download URLs. Uploads happen elsewhere in the platform; this service only
// reads.
type MinioClient struct {
	client     *minio.Client
	logger     *zap.Logger
	logsBucket string
	urlExpiry  time.Duration
}

// NewMinioClient creates and returns a new MinIO client.
func NewMinioClient(cfg *config.Config, logger *zap.Logger) (*MinioClient, error) {
	logger.Info("Initializing MinIO client",
		zap.String("endpoint", cfg.MinioEndpoint),
		zap.Bool("useSSL", cfg.MinioUseSSL),
		zap.String("logsBucket", cfg.MinioLogsBucket),
	)

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKeyID, cfg.MinioSecretAccessKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("Failed to create MinIO client", zap.Error(err))
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		logger.Error("Failed to connect to MinIO server or authenticate", zap.Error(err))
		return nil, fmt.Errorf("failed to connect/authenticate with MinIO: %w", err)
	}
	logger.Info("Successfully connected to MinIO server")

	return &MinioClient{
		client:     client,
		logger:     logger.Named("minio_storage"),
		logsBucket: cfg.MinioLogsBucket,
		urlExpiry:  cfg.PresignedURLExpiry,
	}, nil
}

// TaskLogs fetches the log object for a task (<taskID>.log in the logs
// bucket). A missing or unreadable object yields a placeholder string rather
// than an error; absent logs are an expected state for young or failed jobs.
func (mc *MinioClient) TaskLogs(ctx context.Context, taskID string) string {
	objectKey := taskID + ".log"

	obj, err := mc.client.GetObject(ctx, mc.logsBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		mc.logger.Warn("Failed to retrieve task logs",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return "No logs available for task " + taskID
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		mc.logger.Warn("Failed to read task log object",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return "No logs available for task " + taskID
	}

	mc.logger.Debug("Task logs retrieved",
		zap.String("task_id", taskID),
		zap.Int("bytes", len(data)),
	)
	return string(data)
}

// PresignedLogURL generates a presigned GET URL for a task's log object so
// clients can download logs without routing the bytes through this service.
func (mc *MinioClient) PresignedLogURL(ctx context.Context, taskID string) (string, error) {
	objectKey := taskID + ".log"

	reqParams := make(url.Values)
	presignedURL, err := mc.client.PresignedGetObject(ctx, mc.logsBucket, objectKey, mc.urlExpiry, reqParams)
	if err != nil {
		mc.logger.Error("Failed to generate presigned log URL",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to generate presigned URL for %s/%s: %w", mc.logsBucket, objectKey, err)
	}
	return presignedURL.String(), nil
}
