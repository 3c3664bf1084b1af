package storage

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validR2Config() CloudflareR2UploaderConfig {
	return CloudflareR2UploaderConfig{
		AccountID:       "account",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "logos",
		PublicBaseURL:   "https://cdn.example.com/assets",
	}
}

func TestCloudflareR2UploaderConfig(t *testing.T) {
	assert.False(t, CloudflareR2UploaderConfig{}.Enabled())

	cfg := validR2Config()
	assert.True(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	partial := CloudflareR2UploaderConfig{BucketName: "logos"}
	assert.True(t, partial.Enabled())
	assert.ErrorIs(t, partial.Validate(), ErrInvalidR2Config)

	broken := validR2Config()
	broken.PublicBaseURL = "://nope"
	assert.ErrorIs(t, broken.Validate(), ErrInvalidR2Config)
}

func TestPublicURL(t *testing.T) {
	base, err := url.Parse("https://cdn.example.com/assets")
	require.NoError(t, err)

	tests := []struct {
		key      string
		expected string
	}{
		{key: "tournaments/t1/logo.png", expected: "https://cdn.example.com/assets/tournaments/t1/logo.png"},
		{key: "/tournaments/t1/logo.png", expected: "https://cdn.example.com/assets/tournaments/t1/logo.png"},
		{key: "", expected: ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, PublicURL(base, tc.key), tc.key)
	}
	assert.Equal(t, "", PublicURL(nil, "x"))
}

func TestNewCloudflareR2Uploader(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{AccountID: "a"})
	assert.ErrorIs(t, err, ErrInvalidR2Config)

	uploader, err := NewCloudflareR2Uploader(context.Background(), validR2Config())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/assets/tournaments/t1/logo.png", uploader.GetPublicURL("tournaments/t1/logo.png"))
}
