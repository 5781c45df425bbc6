package lib

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrMultipartBody    = errors.New("requested body of a multipart message")
	ErrNotMultipart     = errors.New("not a multipart message")
	ErrNoSuchMessage    = errors.New("message not found")
)
