// Package bot turns inbound chat messages into detection requests and replies.
package bot

// PhotoSize is one resolution variant of a photo attachment.
type PhotoSize struct {
	FileID       string
	FileUniqueID string
	FileSize     int
	Width        int
	Height       int
}

// InboundMessage is the part of a chat message the handler looks at. Photo
// variants are ordered by increasing resolution.
type InboundMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Caption   string
	Photo     []PhotoSize
}

// HasPhoto reports whether the message carries a photo.
func (m InboundMessage) HasPhoto() bool {
	return len(m.Photo) > 0
}

// LargestPhoto returns the highest resolution variant. It must only be called
// when HasPhoto is true.
func (m InboundMessage) LargestPhoto() PhotoSize {
	return m.Photo[len(m.Photo)-1]
}
