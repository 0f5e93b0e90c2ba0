package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/gophsubmit/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "submissions",
	}
}

// stubSeams replaces the SDK constructors and restores them after the test.
func stubSeams(t *testing.T) {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origPresign := putObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		putObject = origPut
		presignGetObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestNewS3Storage_AppliesOptions(t *testing.T) {
	stubSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	st, err := NewS3Storage(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Storage_LoadError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := NewS3Storage(context.Background(), testConfig())
	require.EqualError(t, err, "load-fail")
}

func TestPut_SendsObject(t *testing.T) {
	stubSeams(t)

	var got *s3.PutObjectInput
	var body string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		b, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		body = string(b)
		return &s3.PutObjectOutput{}, nil
	}

	st, err := NewS3Storage(context.Background(), testConfig())
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "k1", strings.NewReader("hello"), 5, "text/plain"))
	assert.Equal(t, "submissions", *got.Bucket)
	assert.Equal(t, "k1", *got.Key)
	assert.Equal(t, int64(5), *got.ContentLength)
	assert.Equal(t, "text/plain", *got.ContentType)
	assert.Equal(t, "hello", body)

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("put-fail")
	}
	err = st.Put(context.Background(), "k2", strings.NewReader(""), 0, "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object k2: put-fail")
}

func TestPresignGet(t *testing.T) {
	stubSeams(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if *in.Key == "bad" {
			return nil, errors.New("presign-fail")
		}
		return &v4.PresignedHTTPRequest{URL: "http://s3/" + *in.Bucket + "/" + *in.Key}, nil
	}

	st, err := NewS3Storage(context.Background(), testConfig())
	require.NoError(t, err)

	url, err := st.PresignGet(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "http://s3/submissions/k1", url)

	_, err = st.PresignGet(context.Background(), "bad")
	require.EqualError(t, err, "presign-fail")
}

func TestNewStorageKey(t *testing.T) {
	k1 := NewStorageKey("c1", "a1")
	k2 := NewStorageKey("c1", "a1")

	assert.True(t, strings.HasPrefix(k1, "courses/c1/assignments/a1/"))
	assert.NotEqual(t, k1, k2)
}
