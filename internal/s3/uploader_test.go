package s3

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUploader_ArchiveJSON(t *testing.T) {
	fake := &fakePutter{}
	u := &Uploader{Client: fake, Bucket: "reports-bucket", Region: "ap-south-1"}

	url, err := u.ArchiveJSON(context.Background(), "reports/u1/abc.json", map[string]string{"summary": "ok"})
	require.NoError(t, err)

	assert.Equal(t, "https://reports-bucket.s3.ap-south-1.amazonaws.com/reports/u1/abc.json", url)
	assert.Equal(t, "reports-bucket", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))

	var got map[string]string
	require.NoError(t, json.Unmarshal(fake.body, &got))
	assert.Equal(t, "ok", got["summary"])
}

func TestUploader_CloudFrontURL(t *testing.T) {
	u := &Uploader{Bucket: "b", Region: "r", CloudFrontDomain: "cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/k.json", u.ObjectURL("k.json"))
}

func TestUploader_UploadError(t *testing.T) {
	u := &Uploader{Client: &fakePutter{err: errors.New("denied")}, Bucket: "b", Region: "r"}
	_, err := u.ArchiveJSON(context.Background(), "k.json", struct{}{})
	assert.ErrorContains(t, err, "denied")
}
