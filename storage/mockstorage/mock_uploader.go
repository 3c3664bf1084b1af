package mockstorage

import (
	"context"
	"io"

	"github.com/Dosada05/livematch/storage"
	"github.com/stretchr/testify/mock"
)

type Uploader struct {
	mock.Mock
}

func (u *Uploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	args := u.Called(ctx, key, contentType, reader)

	var result *storage.UploadResult
	if args.Get(0) != nil {
		result = args.Get(0).(*storage.UploadResult)
	}
	return result, args.Error(1)
}

func (u *Uploader) Delete(ctx context.Context, key string) error {
	args := u.Called(ctx, key)
	return args.Error(0)
}

func (u *Uploader) GetPublicURL(key string) string {
	args := u.Called(key)
	return args.String(0)
}
