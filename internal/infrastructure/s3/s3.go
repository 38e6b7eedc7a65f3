package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"filevault/config"
	"filevault/internal/application/ports"
)

const presignTTL = 15 * time.Minute

type Client struct {
	logger   *zap.Logger
	bucket   string
	client   *awss3.Client
	uploader *manager.Uploader
	presign  *awss3.PresignClient
}

func New(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.S3,
) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
		}
	})

	logger.Info("object store client ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
	)

	return &Client{
		logger:   logger,
		bucket:   cfg.Bucket,
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  awss3.NewPresignClient(client),
	}, nil
}

func (c *Client) Put(ctx context.Context, key string, body io.Reader, sizeBytes int64, mimeType string) (string, string, error) {
	_, err := c.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", "", mapErr(err)
	}

	url, err := c.GetURL(ctx, key)
	if err != nil {
		return "", "", err
	}

	return key, url, nil
}

func (c *Client) Stat(ctx context.Context, handle string) (ports.ObjectInfo, error) {
	out, err := c.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return ports.ObjectInfo{}, mapErr(err)
	}

	return ports.ObjectInfo{
		Handle:    handle,
		Name:      path.Base(handle),
		SizeBytes: uint64(aws.ToInt64(out.ContentLength)),
		MimeType:  aws.ToString(out.ContentType),
		CreatedAt: aws.ToTime(out.LastModified),
	}, nil
}

func (c *Client) GetURL(ctx context.Context, handle string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(handle),
	}, awss3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", mapErr(err)
	}

	return req.URL, nil
}

func (c *Client) ListUnder(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var infos []ports.ObjectInfo

	p := awss3.NewListObjectsV2Paginator(c.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			infos = append(infos, ports.ObjectInfo{
				Handle:    key,
				Name:      path.Base(key),
				SizeBytes: uint64(aws.ToInt64(obj.Size)),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	return infos, nil
}

func (c *Client) Delete(ctx context.Context, handle string) error {
	_, err := c.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return mapErr(err)
	}

	return nil
}

func mapErr(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return fmt.Errorf("%w: %s", ports.ErrUnauthorized, apiErr.ErrorCode())
		}
	}
	return err
}
