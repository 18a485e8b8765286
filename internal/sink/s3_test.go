package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/imagedrop/backend/internal/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPresign points presigned requests at url and restores the real
// functions when the test ends.
func stubPresign(t *testing.T, url string, seen *s3.PutObjectInput) {
	t.Helper()
	origLoad, origPresign := loadDefaultAWSConfig, presignPutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		presignPutObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if seen != nil {
			*seen = *in
		}
		return &v4.PresignedHTTPRequest{
			URL:          url + "/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key),
			Method:       http.MethodPut,
			SignedHeader: http.Header{"X-Amz-Test": []string{"signed"}},
		}, nil
	}
}

func newTestS3(t *testing.T, prefix string) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), S3Config{
		Endpoint:     "http://127.0.0.1:9000",
		Region:       "us-east-1",
		Bucket:       "images",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		Prefix:       prefix,
		UsePathStyle: true,
	})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewS3_LoadConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3(context.Background(), S3Config{Bucket: "images"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config")
}

func TestS3_StorageKey(t *testing.T) {
	stubPresign(t, "http://unused", nil)

	s := newTestS3(t, "/uploads/")
	key := s.StorageKey("image/png")
	assert.True(t, strings.HasPrefix(key, "uploads/2025/3/14/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	s.cfg.Prefix = ""
	key = s.StorageKey("application/x-unknown-thing")
	assert.True(t, strings.HasPrefix(key, "2025/3/14/"), key)
	assert.NotContains(t, key, ".")
}

func TestS3_Put(t *testing.T) {
	var gotBody, gotType, gotSigned, gotPath string
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotSigned = r.Header.Get("X-Amz-Test")
		gotPath = r.URL.Path
		gotLen = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var in s3.PutObjectInput
	stubPresign(t, srv.URL, &in)
	s := newTestS3(t, "img")

	var last float64
	f := widget.NewMemoryFile("cat.jpg", "image/jpeg", []byte("jpeg-data"))
	info, err := s.Put(context.Background(), f, func(p float64) { last = p })
	require.NoError(t, err)

	assert.Equal(t, "images", aws.ToString(in.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	assert.Equal(t, info.StorageKey, aws.ToString(in.Key))

	assert.Equal(t, "jpeg-data", gotBody)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "signed", gotSigned)
	assert.Equal(t, "/images/"+info.StorageKey, gotPath)
	assert.Equal(t, int64(9), gotLen)

	assert.Equal(t, "s3", info.Sink)
	assert.Equal(t, "cat.jpg", info.Name)
	assert.Equal(t, int64(9), info.Size)
	assert.True(t, strings.HasPrefix(info.StorageKey, "img/2025/3/14/"))
	assert.Equal(t, float64(100), last)
}

func TestS3_PutRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	stubPresign(t, srv.URL, nil)
	s := newTestS3(t, "")

	_, err := s.Put(context.Background(), widget.NewMemoryFile("a.png", "image/png", []byte("x")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestS3_PresignError(t *testing.T) {
	stubPresign(t, "http://unused", nil)
	s := newTestS3(t, "")
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}

	_, err := s.Put(context.Background(), widget.NewMemoryFile("a.png", "image/png", []byte("x")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign-put-fail")
}
