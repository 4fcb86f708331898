// Package storage stores order media in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

var (
	ErrUnavailable  = errs.New(errs.KindInvalidState, "storage_unavailable")
	ErrInvalidInput = errs.New(errs.KindValidation, "invalid_upload")
)

// Object is a stored blob. URL is empty when the bucket is private; callers
// then hand out PresignGet links.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Storage interface {
	Upload(ctx context.Context, folder, name, contentType string, body io.Reader, size int64) (Object, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<folder>/<unix>-<slug>.<ext>" so uploads never collide on
// user supplied names.
func ObjectKey(folder, name string, at time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(path.Base(name), path.Ext(name)))
	if base == "" {
		base = "file"
	}
	folder = strings.Trim(folder, "/")
	return fmt.Sprintf("%s/%d-%s%s", folder, at.UnixNano(), base, ext)
}

type disabled struct{}

func (disabled) Upload(context.Context, string, string, string, io.Reader, int64) (Object, error) {
	return Object{}, ErrUnavailable
}

func (disabled) PresignGet(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (disabled) Delete(context.Context, string) error {
	return ErrUnavailable
}
