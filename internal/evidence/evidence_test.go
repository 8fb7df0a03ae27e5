package evidence

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-allan/at-insurance/internal/apperr"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 64)...)
)

func file(name string, data []byte) File {
	return File{Name: name, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

var limits = Limits{MaxFiles: 5, MaxBytes: 5 << 20}

func TestValidateAcceptsImages(t *testing.T) {
	files, err := Validate([]File{file("crop.JPG", jpegBytes), file("field.png", pngBytes), file("cow.jpeg", jpegBytes)}, limits)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "image/jpeg", files[0].ContentType())
	assert.Equal(t, "image/png", files[1].ContentType())

	// Body is rewound after sniffing.
	data, err := io.ReadAll(files[1].Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string][]File{
		"extension":     {file("notes.txt", []byte("hello"))},
		"gif":           {file("anim.gif", []byte("GIF89a"))},
		"mismatch":      {file("fake.png", jpegBytes)},
		"text as image": {file("fake.jpg", []byte(strings.Repeat("a", 100)))},
		"too many":      {file("1.png", pngBytes), file("2.png", pngBytes), file("3.png", pngBytes), file("4.png", pngBytes), file("5.png", pngBytes), file("6.png", pngBytes)},
		"too large":     {{Name: "big.png", Size: 5<<20 + 1, Body: bytes.NewReader(pngBytes)}},
	}
	for name, files := range cases {
		_, err := Validate(files, limits)
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}
}

func TestLocalStoreSave(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	store := NewLocalStore(root)

	path, err := store.Save(context.Background(), "claim-1", file("crop.jpeg", jpegBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, filepath.ToSlash(filepath.Join(root, "claim_images"))+"/"))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	data, err := os.ReadFile(filepath.FromSlash(path))
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)

	other, err := store.Save(context.Background(), "claim-1", file("crop.jpeg", jpegBytes))
	require.NoError(t, err)
	assert.NotEqual(t, path, other)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	client := &fakeS3{}
	store := NewS3Store(client, "claims-evidence")
	files, err := Validate([]File{file("field.png", pngBytes)}, limits)
	require.NoError(t, err)

	path, err := store.Save(context.Background(), "claim-9", files[0])
	require.NoError(t, err)

	key := aws.ToString(client.input.Key)
	assert.True(t, strings.HasPrefix(key, "claim_images/claim-9/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "s3://claims-evidence/"+key, path)
	assert.Equal(t, "claims-evidence", aws.ToString(client.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(client.input.ContentType))
	assert.Equal(t, "claim-9", client.input.Metadata["claim_id"])
	assert.Equal(t, pngBytes, client.body)
}

func TestS3StoreError(t *testing.T) {
	store := NewS3Store(&fakeS3{err: assert.AnError}, "bucket")
	_, err := store.Save(context.Background(), "claim-1", file("a.png", pngBytes))
	assert.ErrorIs(t, err, assert.AnError)
}
