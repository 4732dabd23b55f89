package websocket

// Client→server frame kinds. Every inbound frame carries a type tag and is
// dispatched through a single switch, so exactly one handler sees it.
const (
	FrameAuth          = "auth"
	FrameChatMessage   = "chat_message"
	FrameMarkRead      = "mark_read"
	FrameEditMessage   = "edit_message"
	FrameDeleteMessage = "delete_message"
	FrameFileUpload    = "file_upload"
	FrameLikeMessage   = "like_message"
)

// Frame is the union of all inbound frame shapes.
type Frame struct {
	Type string `json:"type"`

	// auth
	Token string `json:"token,omitempty"`

	// chat_message
	Message string `json:"message,omitempty"`

	// mark_read / edit_message / delete_message / like_message
	MessageID  uint   `json:"message_id,omitempty"`
	NewContent string `json:"new_content,omitempty"`

	// file_upload (file_url doubles as the attachment reference on
	// chat_message)
	FileData string `json:"file_data,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Content  string `json:"content,omitempty"`
}
