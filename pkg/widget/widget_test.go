package widget

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floatchat/floatchat/pkg/attach"
	"github.com/floatchat/floatchat/pkg/config"
	"github.com/floatchat/floatchat/pkg/webhook"
)

func testConfig() config.WidgetConfig {
	return config.WidgetConfig{
		Position:         config.PositionBottomRight,
		Title:            "Chat",
		Resizable:        true,
		MinWidth:         300,
		MaxWidth:         640,
		MinHeight:        360,
		MaxHeight:        800,
		Width:            380,
		Height:           560,
		MaxMessageLength: 100,
		EnableFileUpload: true,
		MaxFileSize:      1024,
	}
}

func memFile(name, mimeType, content string) attach.PendingFile {
	return attach.PendingFile{
		Name:      name,
		SizeBytes: int64(len(content)),
		MimeType:  mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func brokenFile(name string) attach.PendingFile {
	return attach.PendingFile{
		Name:      name,
		SizeBytes: 1,
		MimeType:  "text/plain",
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("read denied")
		},
	}
}

// recorder collects widget events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) waitFor(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		for _, ev := range r.all() {
			if match(ev) {
				return ev
			}
		}
		select {
		case <-deadline:
			t.Fatal("event never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewGeneratesSessionID(t *testing.T) {
	t.Parallel()

	a := New(testConfig())
	b := New(testConfig())
	assert.NotEmpty(t, a.SessionID())
	assert.NotEqual(t, a.SessionID(), b.SessionID(), "instances get their own sessions")

	cfg := testConfig()
	cfg.SessionID = "pinned"
	assert.Equal(t, "pinned", New(cfg).SessionID())
}

func TestWelcomeMessage(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.WelcomeMessage = "Hi there!"
	w := New(cfg)
	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleBot, msgs[0].Role)
	assert.Equal(t, "Hi there!", msgs[0].Content)
}

func TestOpenCloseToggle(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	unsub := w.Subscribe(rec.handle)
	defer unsub()

	assert.False(t, w.IsOpen())
	w.Open()
	assert.True(t, w.IsOpen())
	w.Open() // no state change, no event
	w.Toggle()
	assert.False(t, w.IsOpen())
	w.Toggle()
	assert.True(t, w.IsOpen())
	w.Close()
	assert.False(t, w.IsOpen())

	var states []bool
	for _, ev := range rec.all() {
		if s, ok := ev.(OpenStateEvent); ok {
			states = append(states, s.Open)
		}
	}
	assert.Equal(t, []bool{true, false, true, false}, states)
}

func TestReplyInjectsBotMessage(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	w.Reply("injected")
	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleBot, msgs[0].Role)
	assert.Equal(t, "injected", msgs[0].Content)
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		t.Error("no request should be made")
		return "", nil
	})

	require.NoError(t, w.Submit(context.Background(), "   "))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, w.Messages())
}

func TestSubmitTextRoundTrip(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	var got webhook.Payload
	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		got = p
		return "Hi", nil
	})

	require.NoError(t, w.Submit(context.Background(), "  Hello "))

	rec.waitFor(t, func(ev Event) bool {
		m, ok := ev.(MessageEvent)
		return ok && m.Message.Role == RoleBot
	})

	assert.Equal(t, w.SessionID(), got.SessionID)
	assert.Equal(t, "sendMessage", got.Action)
	assert.Equal(t, "Hello", got.ChatInput, "input is trimmed")
	assert.Empty(t, got.Files)

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, RoleBot, msgs[1].Role)
	assert.Equal(t, "Hi", msgs[1].Content)

	// Pending indicator went up, then down before the reply.
	var pendings []bool
	for _, ev := range rec.all() {
		if p, ok := ev.(PendingEvent); ok {
			pendings = append(pendings, p.Active)
		}
	}
	assert.Equal(t, []bool{true, false}, pendings)
}

func TestSubmitTooLongMessage(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	err := w.Submit(context.Background(), strings.Repeat("x", 101))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, w.Messages(), "nothing is sent or echoed")

	notices := w.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeMessageTooLong, notices[0].Kind)
}

func TestSubmitWithAttachments(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	w.SelectFiles([]attach.PendingFile{
		memFile("a.txt", "text/plain", "alpha"),
		memFile("b.txt", "text/plain", "beta"),
	})
	require.Len(t, w.Attachments(), 2)

	var got webhook.Payload
	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		got = p
		return "ok", nil
	})

	require.NoError(t, w.Submit(context.Background(), ""))

	rec.waitFor(t, func(ev Event) bool {
		m, ok := ev.(MessageEvent)
		return ok && m.Message.Role == RoleBot
	})

	require.Len(t, got.Files, 2)
	assert.Equal(t, "a.txt", got.Files[0].FileName)
	assert.Equal(t, "5 bytes", got.Files[0].FileSize)
	assert.Equal(t, "txt", got.Files[0].FileExtension)
	assert.Equal(t, "text", got.Files[0].FileType)
	assert.Equal(t, "b.txt", got.Files[1].FileName, "selection order preserved")
	assert.Equal(t, "", got.ChatInput)

	assert.Empty(t, w.Attachments(), "attachments clear after dispatch")
}

func TestEncodingFailurePreservesAttachments(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		t.Error("aborted submission must not reach the backend")
		return "", nil
	})

	w.SelectFiles([]attach.PendingFile{
		memFile("ok1.txt", "text/plain", "a"),
		brokenFile("bad.txt"),
		memFile("ok2.txt", "text/plain", "b"),
	})
	require.Len(t, w.Attachments(), 3)

	err := w.Submit(context.Background(), "with files")
	require.Error(t, err)
	assert.ErrorIs(t, err, attach.ErrEncodingFailure)

	assert.Len(t, w.Attachments(), 3, "pending list kept for retry")
	assert.Empty(t, w.Messages(), "no partial payload, no echo")

	notices := w.Notices()
	require.Len(t, notices, 1, "one pipeline-level notice, not per-file")
	assert.Equal(t, NoticeEncodingFailure, notices[0].Kind)
}

func TestSelectFilesRejectionsRaiseNotices(t *testing.T) {
	t.Parallel()

	w := New(testConfig()) // MaxFileSize 1024
	w.SelectFiles([]attach.PendingFile{
		memFile("fine.txt", "text/plain", "ok"),
		memFile("huge.bin", "application/octet-stream", strings.Repeat("x", 2048)),
	})

	rows := w.Attachments()
	require.Len(t, rows, 1)
	assert.Equal(t, "fine.txt", rows[0].Name)

	notices := w.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeFileTooLarge, notices[0].Kind)
}

func TestSelectFilesDisabledUpload(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EnableFileUpload = false
	w := New(cfg)
	w.SelectFiles([]attach.PendingFile{memFile("a.txt", "text/plain", "x")})
	assert.Empty(t, w.Attachments())
}

func TestRemoveAttachment(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	w.SelectFiles([]attach.PendingFile{
		memFile("a", "text/plain", "1"),
		memFile("b", "text/plain", "2"),
	})

	w.RemoveAttachment(0)
	rows := w.Attachments()
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Name)

	w.RemoveAttachment(0)
	assert.Empty(t, w.Attachments())

	// The final AttachmentsEvent carries no rows: preview hides, picker resets.
	events := rec.all()
	last, ok := events[len(events)-1].(AttachmentsEvent)
	require.True(t, ok)
	assert.Empty(t, last.Rows)
}

func TestNetworkFailureShowsApology(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		return "", webhook.ErrNetworkFailure
	})

	require.NoError(t, w.Submit(context.Background(), "hello"))

	rec.waitFor(t, func(ev Event) bool {
		m, ok := ev.(MessageEvent)
		return ok && m.Message.Role == RoleBot
	})

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, apologyMessage, msgs[1].Content)

	// Indicator dropped before the apology appeared.
	sawPendingOff := false
	for _, ev := range rec.all() {
		if p, ok := ev.(PendingEvent); ok && !p.Active {
			sawPendingOff = true
		}
		if m, ok := ev.(MessageEvent); ok && m.Message.Role == RoleBot {
			assert.True(t, sawPendingOff, "pending indicator clears first")
		}
	}

	rec.waitFor(t, func(ev Event) bool {
		n, ok := ev.(NoticeEvent)
		return ok && n.Notice.Kind == NoticeNetworkFailure
	})
}

func TestConcurrentSubmissionsResolveIndependently(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	release := make(chan struct{})
	w.OnUserRequest(func(ctx context.Context, p webhook.Payload) (string, error) {
		if p.ChatInput == "first" {
			<-release // first request resolves last
			return "reply-first", nil
		}
		return "reply-second", nil
	})

	require.NoError(t, w.Submit(context.Background(), "first"))
	require.NoError(t, w.Submit(context.Background(), "second"))

	rec.waitFor(t, func(ev Event) bool {
		m, ok := ev.(MessageEvent)
		return ok && m.Message.Content == "reply-second"
	})
	close(release)
	rec.waitFor(t, func(ev Event) bool {
		m, ok := ev.(MessageEvent)
		return ok && m.Message.Content == "reply-first"
	})

	// Both replies landed, each for its own request.
	var bot []string
	for _, m := range w.Messages() {
		if m.Role == RoleBot {
			bot = append(bot, m.Content)
		}
	}
	assert.ElementsMatch(t, []string{"reply-first", "reply-second"}, bot)
}

func TestNoticeAutoDismiss(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	w.noticeTTL = 30 * time.Millisecond
	rec := &recorder{}
	defer w.Subscribe(rec.handle)()

	err := w.Submit(context.Background(), strings.Repeat("x", 101))
	require.Error(t, err)
	require.Len(t, w.Notices(), 1)

	rec.waitFor(t, func(ev Event) bool {
		_, ok := ev.(NoticeExpiredEvent)
		return ok
	})
	assert.Empty(t, w.Notices())
}

func TestDestroyDetachesHandlers(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	w.Subscribe(rec.handle)

	w.Destroy()
	w.Reply("after destroy")
	assert.Empty(t, rec.all(), "no events after teardown")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	rec := &recorder{}
	unsub := w.Subscribe(rec.handle)

	w.Reply("one")
	require.Len(t, rec.all(), 1)

	unsub()
	w.Reply("two")
	assert.Len(t, rec.all(), 1)
}

func TestResizerFollowsConfig(t *testing.T) {
	t.Parallel()

	w := New(testConfig())
	assert.True(t, w.Resizer().Enabled())

	cfg := testConfig()
	cfg.Resizable = false
	assert.False(t, New(cfg).Resizer().Enabled())
}
