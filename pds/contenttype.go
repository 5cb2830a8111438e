package pds

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
)

var ErrMissingContentType = errors.New("Content-Type header is missing")

// BadContentTypeError means a Content-Type header was present but unparseable or not
// the expected media type.
type BadContentTypeError struct {
	Got string
}

func (e *BadContentTypeError) Error() string {
	return fmt.Sprintf("BadType: `%s`", e.Got)
}

// RequireContentType returns the request's media type (parameters stripped). If want is
// non-empty the media type must equal it.
func RequireContentType(r *http.Request, want string) (string, error) {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return "", ErrMissingContentType
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", &BadContentTypeError{Got: raw}
	}
	if want != "" && mediaType != want {
		return mediaType, &BadContentTypeError{Got: mediaType}
	}
	return mediaType, nil
}
