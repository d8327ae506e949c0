package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir(), "/blobs/")
	require.NoError(t, err)
	defer backend.Close()

	exists, err := backend.Exists("cat")
	require.NoError(t, err)
	assert.False(t, exists)

	url, err := backend.Upload(ctx, "cat", []byte("meow"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/blobs/cat", url)

	exists, err = backend.Exists("cat")
	require.NoError(t, err)
	assert.True(t, exists)

	reader, metadata, err := backend.Open("cat")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("meow"), data)
	assert.Equal(t, "image/png", metadata.ContentType)
	assert.Equal(t, int64(4), metadata.Size)
	assert.Equal(t, "cat", metadata.Name)

	_, _, err = backend.Open("dog")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, _, err = backend.Open("")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = backend.Upload(ctx, "", []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestLocalBackendReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	backend, err := NewLocalBackend(root, "/blobs")
	require.NoError(t, err)
	_, err = backend.Upload(ctx, "cat", []byte("meow"), "image/gif")
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	backend, err = NewLocalBackend(root, "/blobs")
	require.NoError(t, err)
	defer backend.Close()

	reader, metadata, err := backend.Open("cat")
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "image/gif", metadata.ContentType)
}

type fakeUploader struct {
	inputs   []*s3.PutObjectInput
	bodies   [][]byte
	location string
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.inputs = append(f.inputs, input)
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{Location: f.location}, nil
}

func TestS3BackendUpload(t *testing.T) {
	up := &fakeUploader{location: "https://bucket.s3.amazonaws.com/images/cat"}
	backend := newS3Backend(up, S3Options{Bucket: "bucket", Prefix: "/images/"})

	url, err := backend.Upload(context.Background(), "cat", []byte("meow"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/images/cat", url)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "bucket", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "images/cat", aws.ToString(up.inputs[0].Key))
	assert.Equal(t, "image/png", aws.ToString(up.inputs[0].ContentType))
	assert.Equal(t, []byte("meow"), up.bodies[0])
}

func TestS3BackendPublicURL(t *testing.T) {
	up := &fakeUploader{location: "ignored"}
	backend := newS3Backend(up, S3Options{Bucket: "bucket", PublicURL: "https://cdn.example.com/"})

	url, err := backend.Upload(context.Background(), "cat", []byte("meow"), "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cat", url)
	assert.Nil(t, up.inputs[0].ContentType)
}

func TestS3BackendErrors(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	backend := newS3Backend(up, S3Options{Bucket: "bucket"})

	_, err := backend.Upload(context.Background(), "cat", []byte("meow"), "image/png")
	assert.ErrorIs(t, err, up.err)

	backend = newS3Backend(&fakeUploader{}, S3Options{Bucket: "bucket"})
	_, err = backend.Upload(context.Background(), "cat", []byte("meow"), "image/png")
	assert.Error(t, err)
}

func TestNewS3BackendRequiresBucket(t *testing.T) {
	_, err := NewS3Backend(context.Background(), S3Options{})
	assert.Error(t, err)
}
