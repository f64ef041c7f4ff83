package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/sirupsen/logrus"
)

// ArchiveClient é o cliente de arquivamento de documentos em storage
// compatível com S3 (XML assinado, respostas brutas, PDFs)
type ArchiveClient struct {
	s3Client *s3.Client
	config   *config.StorageConfig
	logger   *logrus.Logger
	bucket   string
}

// NewArchiveClient cria uma nova instância do cliente de arquivamento
func NewArchiveClient(cfg *config.StorageConfig, logger *logrus.Logger) (*ArchiveClient, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.Endpoint,
			SigningRegion:     cfg.Region,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // necessário para endpoints compatíveis com S3
	})

	return &ArchiveClient{
		s3Client: s3Client,
		config:   cfg,
		logger:   logger,
		bucket:   cfg.Bucket,
	}, nil
}

// HealthCheck verifica a conexão ao storage
func (a *ArchiveClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := a.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking archive storage connection: %w", err)
	}

	a.logger.Info("Archive storage connection healthy")
	return nil
}

// Bucket retorna o bucket padrão de arquivamento
func (a *ArchiveClient) Bucket() string {
	return a.bucket
}

// UploadFile sobe um documento ao storage e retorna a URL
func (a *ArchiveClient) UploadFile(ctx context.Context, fileName string, fileData []byte, contentType string) (string, error) {
	reader := bytes.NewReader(fileData)

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(fileName),
		Body:          reader,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileData))),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading file to archive storage: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", a.config.Endpoint, a.bucket, fileName)

	a.logger.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"file":   fileName,
		"url":    url,
		"size":   len(fileData),
	}).Info("File uploaded to archive storage successfully")

	return url, nil
}

// DownloadFile baixa um documento do storage
func (a *ArchiveClient) DownloadFile(ctx context.Context, fileName string) ([]byte, error) {
	result, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading file from archive storage: %w", err)
	}
	defer result.Body.Close()

	fileData, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"file":   fileName,
		"size":   len(fileData),
	}).Info("File downloaded from archive storage successfully")

	return fileData, nil
}

// DeleteFile remove um documento do storage
func (a *ArchiveClient) DeleteFile(ctx context.Context, fileName string) error {
	_, err := a.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return fmt.Errorf("error deleting file from archive storage: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"bucket": a.bucket,
		"file":   fileName,
	}).Info("File deleted from archive storage successfully")

	return nil
}

// Close fecha o cliente de arquivamento
func (a *ArchiveClient) Close() error {
	// o cliente S3 não mantém conexões persistentes
	return nil
}
