package services

import (
	"chat-relay/errors"
	"encoding/base64"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

const MaxProfilePictureSize = 5 * 1024 * 1024

var (
	dataURLPrefix   = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,`)
	allowedPictures = []string{"image/png", "image/jpeg"}
)

// DecodeProfilePicture turns a PNG/JPEG data URL into raw bytes.
// The declared type must match the sniffed content.
func DecodeProfilePicture(dataURL string) ([]byte, error) {
	loc := dataURLPrefix.FindStringIndex(dataURL)
	if loc == nil {
		return nil, errors.ErrInvalidProfilePicture
	}

	raw, err := base64.StdEncoding.DecodeString(dataURL[loc[1]:])
	if err != nil {
		return nil, errors.ErrInvalidProfilePicture
	}
	if len(raw) > MaxProfilePictureSize {
		return nil, errors.ErrProfilePictureTooBig
	}

	detected := mimetype.Detect(raw)
	if !lo.ContainsBy(allowedPictures, func(mime string) bool { return detected.Is(mime) }) {
		return nil, errors.ErrInvalidProfilePicture
	}
	return raw, nil
}
