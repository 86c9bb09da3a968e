package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/etnz/finntra"
	"github.com/google/uuid"
)

// MaxPhotoSize is the largest accepted profile photo, in bytes.
const MaxPhotoSize = 5 << 20

// DefaultBucket holds profile photos.
const DefaultBucket = "profile-photos"

var (
	ErrPhotoTooLarge = errors.New("photo is larger than 5 MB")
	ErrPhotoType     = errors.New("photo must be a jpeg, png, gif or webp image")
	ErrNoStorage     = errors.New("no object storage configured")
)

// photoTypes maps accepted media types to their file extension.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// checkPhoto validates the media type and size of a photo and returns the
// extension of its object key.
func checkPhoto(name, contentType string, size int64) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrPhotoType
	}
	ext, ok := photoTypes[mediaType]
	if !ok {
		return "", ErrPhotoType
	}
	if size > MaxPhotoSize {
		return "", ErrPhotoTooLarge
	}
	// keep the uploaded name's extension when it agrees with the type.
	if e := strings.ToLower(filepath.Ext(name)); e != "" {
		if t := mime.TypeByExtension(e); t != "" {
			if mt, _, _ := mime.ParseMediaType(t); mt == mediaType {
				ext = e
			}
		}
	}
	return ext, nil
}

// UploadPhoto stores the user's profile photo and points the profile at it.
// Type and size are checked before anything is sent.
func (s *Synchronizer) UploadPhoto(ctx context.Context, name, contentType string, size int64, body io.Reader) (string, error) {
	u, err := s.current()
	if err != nil {
		return "", err
	}
	ext, err := checkPhoto(name, contentType, size)
	if err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", ErrNoStorage
	}
	key := fmt.Sprintf("%s/%s%s", u.id, uuid.NewString(), ext)
	url, err := s.storage.Upload(ctx, s.bucket, key, contentType, io.LimitReader(body, size), size)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateProfile(ctx, u.id, finntra.ProfilePatch{PhotoURL: &url}); err != nil {
		return url, err
	}
	return url, nil
}
