package sink

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// S3Config configures the S3 sink. Any S3-compatible endpoint (MinIO, R2)
// works with UsePathStyle set.
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Prefix        string
	UsePathStyle  bool
	PresignExpiry time.Duration
}

// S3 uploads through presigned PUT URLs so the request body can be streamed
// with progress reporting.
type S3 struct {
	cfg     S3Config
	presign *s3.PresignClient
	client  *http.Client
	now     func() time.Time
}

// NewS3 builds the S3 client and presigner from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: bucket is required")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
		client:  &http.Client{},
		now:     time.Now,
	}, nil
}

func (s *S3) Name() string { return "s3" }

// StorageKey returns a new object key for a file of the given media type,
// e.g. "images/2025/3/14/<uuid>.png".
func (s *S3) StorageKey(contentType string) string {
	d := s.now()
	key := fmt.Sprintf("%d/%d/%d/%s", d.Year(), d.Month(), d.Day(), uuid.New())
	if m := mimetype.Lookup(contentType); m != nil {
		key += m.Extension()
	}
	if p := strings.Trim(s.cfg.Prefix, "/"); p != "" {
		key = path.Join(p, key)
	}
	return key
}

// Put presigns a PUT for a fresh key and streams f to it.
func (s *S3) Put(ctx context.Context, f widget.File, progress widget.ProgressFunc) (*models.FileInfo, error) {
	key := s.StorageKey(f.Type())

	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(f.Type()),
	}, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	src, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer src.Close()

	body := NewProgressReader(src, f.Size(), progress)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.ContentLength = f.Size()
	for name, values := range req.SignedHeader {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Content-Type", f.Type())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload failed: %s", resp.Status)
	}

	return &models.FileInfo{
		ID:          path.Base(key),
		Name:        f.Name(),
		ContentType: f.Type(),
		Size:        body.BytesRead(),
		StorageKey:  key,
		Sink:        s.Name(),
		UploadedAt:  s.now(),
	}, nil
}
