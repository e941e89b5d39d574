package widget

import (
	"time"

	"github.com/floatchat/floatchat/pkg/attach"
)

// Role tags who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one entry of the conversation log.
type Message struct {
	Role    Role
	Content string
	Time    time.Time
}

// Notice is a transient inline error shown near the message list. It
// auto-dismisses; none are fatal to the widget.
type Notice struct {
	ID   int
	Kind string
	Text string
}

// Notice kinds, one per recoverable error class.
const (
	NoticeFileTooLarge     = "file-too-large"
	NoticeFileTypeRejected = "file-type-rejected"
	NoticeEncodingFailure  = "encoding-failure"
	NoticeNetworkFailure   = "network-failure"
	NoticeMessageTooLong   = "message-too-long"
	NoticeGeneric          = "error"
)

// Event is delivered to subscribed hosts. Handlers run on whichever
// goroutine triggered the event and must not block.
type Event interface {
	isEvent()
}

// MessageEvent fires when a message is appended to the log.
type MessageEvent struct {
	Message Message
}

// NoticeEvent fires when an error notice is raised.
type NoticeEvent struct {
	Notice Notice
}

// NoticeExpiredEvent fires when a notice's auto-dismiss delay elapses.
type NoticeExpiredEvent struct {
	ID int
}

// OpenStateEvent fires when the panel opens or closes.
type OpenStateEvent struct {
	Open bool
}

// PendingEvent toggles the in-progress indicator while a submission awaits
// its reply.
type PendingEvent struct {
	Active bool
}

// AttachmentsEvent fires whenever the pending attachment set changes. Empty
// rows mean the preview should hide and the file picker reset.
type AttachmentsEvent struct {
	Rows []attach.PreviewRow
}

func (MessageEvent) isEvent()       {}
func (NoticeEvent) isEvent()        {}
func (NoticeExpiredEvent) isEvent() {}
func (OpenStateEvent) isEvent()     {}
func (PendingEvent) isEvent()       {}
func (AttachmentsEvent) isEvent()   {}
