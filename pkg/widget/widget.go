// Package widget is the chat widget core shared by the terminal and embed
// hosts. A Widget owns its configuration, session id, conversation log,
// pending attachments, and resize controller; hosts render state and feed
// events back in. Multiple instances are independent by construction.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floatchat/floatchat/pkg/attach"
	"github.com/floatchat/floatchat/pkg/config"
	"github.com/floatchat/floatchat/pkg/logger"
	"github.com/floatchat/floatchat/pkg/resize"
	"github.com/floatchat/floatchat/pkg/webhook"
)

// ErrMessageTooLong rejects input exceeding the configured message length.
var ErrMessageTooLong = errors.New("message too long")

// apologyMessage is shown as a bot message after a network failure.
const apologyMessage = "Sorry, something went wrong. Please try again."

const defaultNoticeTTL = 5 * time.Second

// UserRequestFunc overrides the default network submission path. It receives
// the assembled payload and returns the reply text to display.
type UserRequestFunc func(ctx context.Context, p webhook.Payload) (string, error)

type Widget struct {
	cfg       config.WidgetConfig
	sessionID string
	client    *webhook.Client
	resizer   *resize.Controller

	mu            sync.Mutex
	messages      []Message
	attachments   attach.List
	open          bool
	notices       []Notice
	nextNoticeID  int
	subs          map[int]func(Event)
	nextSubID     int
	onUserRequest UserRequestFunc
	closed        bool

	noticeTTL time.Duration
}

// New builds a widget instance from its configuration. A missing session id
// is generated once here and kept for the instance's lifetime.
func New(cfg config.WidgetConfig) *Widget {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	anchor := resize.AnchorRight
	if cfg.Position == config.PositionBottomLeft {
		anchor = resize.AnchorLeft
	}
	bounds := resize.Bounds{
		MinWidth:  cfg.MinWidth,
		MaxWidth:  cfg.MaxWidth,
		MinHeight: cfg.MinHeight,
		MaxHeight: cfg.MaxHeight,
	}

	w := &Widget{
		cfg:       cfg,
		sessionID: sessionID,
		client:    webhook.NewClient(cfg.APIURL),
		resizer:   resize.NewController(bounds, anchor, cfg.Resizable),
		subs:      make(map[int]func(Event)),
		noticeTTL: defaultNoticeTTL,
	}

	if cfg.WelcomeMessage != "" {
		w.messages = append(w.messages, Message{
			Role:    RoleBot,
			Content: cfg.WelcomeMessage,
			Time:    time.Now(),
		})
	}

	logger.Info("widget", "widget initialized", map[string]interface{}{
		"session_id": sessionID,
		"resizable":  cfg.Resizable,
	})
	return w
}

func (w *Widget) Config() config.WidgetConfig { return w.cfg }

func (w *Widget) SessionID() string { return w.sessionID }

// Resizer returns this instance's resize controller.
func (w *Widget) Resizer() *resize.Controller { return w.resizer }

// Subscribe registers an event handler and returns its unsubscribe func.
func (w *Widget) Subscribe(fn func(Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSubID
	w.nextSubID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Destroy tears the instance down: all handlers are detached and any active
// resize session is ended. Pending network continuations are abandoned, not
// cancelled; their events go nowhere.
func (w *Widget) Destroy() {
	w.mu.Lock()
	w.closed = true
	w.subs = make(map[int]func(Event))
	w.mu.Unlock()
	w.resizer.End()
}

func (w *Widget) emit(ev Event) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	handlers := make([]func(Event), 0, len(w.subs))
	for _, fn := range w.subs {
		handlers = append(handlers, fn)
	}
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// Open shows the panel.
func (w *Widget) Open() { w.setOpen(true) }

// Close hides the panel.
func (w *Widget) Close() { w.setOpen(false) }

// Toggle flips the panel between open and closed.
func (w *Widget) Toggle() {
	w.mu.Lock()
	next := !w.open
	w.mu.Unlock()
	w.setOpen(next)
}

func (w *Widget) setOpen(open bool) {
	w.mu.Lock()
	changed := w.open != open
	w.open = open
	w.mu.Unlock()
	if changed {
		w.emit(OpenStateEvent{Open: open})
	}
}

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Reply injects a bot message without any network round trip.
func (w *Widget) Reply(text string) {
	w.appendMessage(Message{Role: RoleBot, Content: text, Time: time.Now()})
}

// OnUserRequest overrides the default webhook submission path.
func (w *Widget) OnUserRequest(fn UserRequestFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUserRequest = fn
}

// Messages returns a copy of the conversation log.
func (w *Widget) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Notices returns the currently visible notices.
func (w *Widget) Notices() []Notice {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Notice, len(w.notices))
	copy(out, w.notices)
	return out
}

func (w *Widget) appendMessage(m Message) {
	w.mu.Lock()
	w.messages = append(w.messages, m)
	w.mu.Unlock()
	w.emit(MessageEvent{Message: m})
}

// notify raises an auto-dismissing notice for a recoverable error.
func (w *Widget) notify(err error) {
	w.mu.Lock()
	n := Notice{ID: w.nextNoticeID, Kind: noticeKind(err), Text: err.Error()}
	w.nextNoticeID++
	w.notices = append(w.notices, n)
	ttl := w.noticeTTL
	w.mu.Unlock()

	w.emit(NoticeEvent{Notice: n})
	time.AfterFunc(ttl, func() {
		w.mu.Lock()
		for i, cur := range w.notices {
			if cur.ID == n.ID {
				w.notices = append(w.notices[:i], w.notices[i+1:]...)
				break
			}
		}
		w.mu.Unlock()
		w.emit(NoticeExpiredEvent{ID: n.ID})
	})
}

func noticeKind(err error) string {
	switch {
	case errors.Is(err, attach.ErrFileTooLarge):
		return NoticeFileTooLarge
	case errors.Is(err, attach.ErrFileTypeRejected):
		return NoticeFileTypeRejected
	case errors.Is(err, attach.ErrEncodingFailure):
		return NoticeEncodingFailure
	case errors.Is(err, webhook.ErrNetworkFailure):
		return NoticeNetworkFailure
	case errors.Is(err, ErrMessageTooLong):
		return NoticeMessageTooLong
	}
	return NoticeGeneric
}

func (w *Widget) policy() attach.Policy {
	return attach.Policy{
		MaxFileSize:  w.cfg.MaxFileSize,
		AllowedTypes: w.cfg.AllowedFileTypes,
	}
}

// SelectFiles replaces the pending attachment set with the valid files from
// a new selection. Each rejected file raises its own notice without blocking
// valid siblings. No-op when file upload is disabled.
func (w *Widget) SelectFiles(files []attach.PendingFile) {
	if !w.cfg.EnableFileUpload {
		return
	}
	w.mu.Lock()
	errs := w.attachments.Select(files, w.policy())
	rows := w.attachments.Preview()
	w.mu.Unlock()

	for _, err := range errs {
		logger.Warn("widget", "attachment rejected", map[string]interface{}{"error": err.Error()})
		w.notify(err)
	}
	w.emit(AttachmentsEvent{Rows: rows})
}

// RemoveAttachment drops the pending entry at position i. An emptied set is
// signalled with empty preview rows so the host hides the preview and resets
// its picker.
func (w *Widget) RemoveAttachment(i int) {
	w.mu.Lock()
	removed := w.attachments.RemoveAt(i)
	rows := w.attachments.Preview()
	w.mu.Unlock()
	if removed {
		w.emit(AttachmentsEvent{Rows: rows})
	}
}

// Attachments returns the current preview rows.
func (w *Widget) Attachments() []attach.PreviewRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attachments.Preview()
}

// Submit runs one submission: validate the text, encode the pending
// attachments, assemble the payload, and dispatch it. Validation and
// encoding are synchronous and report errors to the caller as well as via
// notices; the network exchange runs on its own goroutine so further
// submissions are not serialized behind it. Replies append whenever they
// arrive, in no guaranteed order across submissions.
//
// On encoding failure the pending attachment list is preserved for retry.
// On success the attachments are cleared as soon as the payload is
// dispatched, so a follow-up message cannot resend them.
func (w *Widget) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	if max := w.cfg.MaxMessageLength; max > 0 && len([]rune(text)) > max {
		err := fmt.Errorf("%w: %d characters (limit %d)", ErrMessageTooLong, len([]rune(text)), max)
		w.notify(err)
		return err
	}

	w.mu.Lock()
	files := w.attachments.Files()
	w.mu.Unlock()

	if text == "" && len(files) == 0 {
		return nil
	}

	encoded, err := attach.Encode(ctx, files)
	if err != nil {
		logger.Error("widget", "encoding aborted submission", map[string]interface{}{"error": err.Error()})
		w.notify(err)
		return err
	}

	payload := webhook.NewPayload(w.sessionID, text, encoded)
	if payload.Empty() {
		return nil
	}

	w.appendMessage(Message{Role: RoleUser, Content: text, Time: time.Now()})

	w.mu.Lock()
	w.attachments.RemoveAll()
	send := w.onUserRequest
	w.mu.Unlock()
	w.emit(AttachmentsEvent{Rows: nil})

	if send == nil {
		send = func(ctx context.Context, p webhook.Payload) (string, error) {
			return w.client.Send(ctx, p)
		}
	}

	w.emit(PendingEvent{Active: true})
	go w.dispatch(ctx, send, payload)
	return nil
}

func (w *Widget) dispatch(ctx context.Context, send UserRequestFunc, payload webhook.Payload) {
	reply, err := send(ctx, payload)

	// The in-progress indicator drops before any outcome is shown.
	w.emit(PendingEvent{Active: false})

	if err != nil {
		logger.Error("widget", "submission failed", map[string]interface{}{
			"session_id": payload.SessionID,
			"error":      err.Error(),
		})
		w.notify(err)
		w.appendMessage(Message{Role: RoleBot, Content: apologyMessage, Time: time.Now()})
		return
	}

	w.appendMessage(Message{Role: RoleBot, Content: reply, Time: time.Now()})
}
