package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putInput    *s3.PutObjectInput
	getInput    *s3.GetObjectInput
	deleteInput *s3.DeleteObjectInput
	getBody     string
	err         error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = params
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.getInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.getBody))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteInput = params
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3PutBuildsURLAndContentType(t *testing.T) {
	fake := &fakeS3{}
	store := &S3BlobStore{client: fake, bucket: "opschat-docs"}

	url, err := store.Put(context.Background(), "7_abc_report.pdf", strings.NewReader("x"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "s3://opschat-docs/7_abc_report.pdf", url)
	assert.Equal(t, "opschat-docs", aws.ToString(fake.putInput.Bucket))
	assert.Equal(t, "7_abc_report.pdf", aws.ToString(fake.putInput.Key))
	assert.Equal(t, "application/pdf", aws.ToString(fake.putInput.ContentType))
}

func TestS3PutOmitsEmptyContentType(t *testing.T) {
	fake := &fakeS3{}
	store := &S3BlobStore{client: fake, bucket: "b"}

	_, err := store.Put(context.Background(), "k", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Nil(t, fake.putInput.ContentType)
}

func TestS3GetReturnsBody(t *testing.T) {
	fake := &fakeS3{getBody: "the content"}
	store := &S3BlobStore{client: fake, bucket: "b"}

	rc, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "the content", string(body))
	assert.Equal(t, "k", aws.ToString(fake.getInput.Key))
}

func TestS3ErrorsAreWrapped(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	store := &S3BlobStore{client: fake, bucket: "b"}

	_, err := store.Put(context.Background(), "k", strings.NewReader("x"), "")
	assert.ErrorContains(t, err, "k")

	err = store.Delete(context.Background(), "k")
	assert.ErrorContains(t, err, "access denied")
}
