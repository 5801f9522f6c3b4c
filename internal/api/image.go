package api

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/go-faster/errors"
)

// MaxImageSize bounds files accepted by ImageDataURL.
const MaxImageSize = 8 << 20

// ImageDataURL reads an image file and encodes it as a data URL, the form
// the server accepts for image messages and profile pictures.
func ImageDataURL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, "stat image")
	}
	if info.Size() > MaxImageSize {
		return "", errors.Errorf("image is %d bytes, limit is %d", info.Size(), MaxImageSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read image")
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", errors.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
