// Package chat sends replies to, and fetches files from, the chat platform.
package chat

import (
	"context"
	"errors"
)

// ErrPhotoNotFound is returned by SendPhoto when the local file is missing.
var ErrPhotoNotFound = errors.New("image path doesn't exist")

// File is a downloaded chat attachment. Path is the platform-side file path,
// for example "photos/file_3.jpg".
type File struct {
	Path string
	Data []byte
}

// Gateway is the capability the orchestrator needs from the chat platform.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, localPath string) error
	FetchFile(ctx context.Context, fileID string) (*File, error)
}
