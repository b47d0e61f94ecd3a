package writer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	appconfig "calderaflow/config"
	"calderaflow/logger"
)

// Uploader copies finished run artifacts to S3. Put requests are rate
// limited so a run with many checkpoint files stays under the configured
// request budget.
type Uploader struct {
	cfg     *appconfig.Config
	client  *s3.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewUploader configures the AWS SDK from the run configuration and
// validates that credentials resolve before any artifact is produced.
func NewUploader(cfg *appconfig.Config) (*Uploader, error) {
	if !cfg.Storage.S3.Enabled {
		return nil, fmt.Errorf("s3 storage disabled")
	}

	ctx := context.Background()
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Storage.S3.Region)}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	rps := cfg.Storage.S3.RequestsPerSecond
	uploader := &Uploader{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     logger.GetLogger(),
	}

	uploader.log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 uploader initialized")

	return uploader, nil
}

// UploadRun copies each local artifact under <prefix>/runs/<runID>/.
func (u *Uploader) UploadRun(ctx context.Context, runID string, paths []string) error {
	log := u.log.WithComponent("s3_uploader").WithFields(logger.Fields{"run_id": runID})
	for _, p := range paths {
		key := path.Join(u.cfg.Storage.S3.Prefix, "runs", runID, filepath.Base(p))
		if err := u.upload(ctx, p, key); err != nil {
			return err
		}
		log.WithFields(logger.Fields{"artifact": filepath.Base(p), "key": key}).Info("artifact uploaded")
	}
	return nil
}

func (u *Uploader) upload(ctx context.Context, localPath, key string) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Storage.S3.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
