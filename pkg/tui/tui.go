// Package tui is the terminal host for the chat widget: a corner bubble
// toggle, a floating resizable panel, markdown messages with a typing
// animation, and path-based file attachment.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/floatchat/floatchat/pkg/attach"
	"github.com/floatchat/floatchat/pkg/config"
	"github.com/floatchat/floatchat/pkg/logger"
	"github.com/floatchat/floatchat/pkg/resize"
	"github.com/floatchat/floatchat/pkg/widget"
)

// Terminal cells are taller than wide; configured pixel dimensions map to
// cells with the usual 8x16 glyph estimate.
const (
	pxPerCellX = 8
	pxPerCellY = 16

	bubbleWidth  = 6
	bubbleHeight = 3
	marginX      = 2
	marginY      = 1
)

type displayMsg struct {
	role   widget.Role
	text   string
	reveal int // runes shown so far; -1 once fully revealed
	at     time.Time
}

type TUI struct {
	app    *tview.Application
	cfg    *config.Config
	widget *widget.Widget

	// resizer works in cell units, scaled from the configured pixel bounds.
	resizer *resize.Controller

	pages      *tview.Pages
	backdrop   *tview.TextView
	panel      *tview.Flex
	msgView    *tview.TextView
	attachView *tview.TextView
	noticeView *tview.TextView
	input      *tview.InputField
	bubble     *tview.Button
	attachBar  *tview.InputField

	// All fields below are owned by the UI goroutine.
	viewport  resize.Size
	panelW    int
	panelH    int
	sideOff   int
	bottomOff int
	msgs      []displayMsg
	notices   []widget.Notice
	attach    []attach.PreviewRow
	pending   bool
	attaching bool

	events chan widget.Event
	unsub  func()
}

func New(cfg *config.Config, w *widget.Widget) *TUI {
	wc := cfg.Widget

	anchor := resize.AnchorRight
	if wc.Position == config.PositionBottomLeft {
		anchor = resize.AnchorLeft
	}
	bounds := resize.Bounds{
		MinWidth:  wc.MinWidth / pxPerCellX,
		MaxWidth:  wc.MaxWidth / pxPerCellX,
		MinHeight: wc.MinHeight / pxPerCellY,
		MaxHeight: wc.MaxHeight / pxPerCellY,
	}

	t := &TUI{
		app:       tview.NewApplication(),
		cfg:       cfg,
		widget:    w,
		resizer:   resize.NewController(bounds, anchor, wc.Resizable),
		panelW:    wc.Width / pxPerCellX,
		panelH:    wc.Height / pxPerCellY,
		sideOff:   marginX,
		bottomOff: bubbleHeight + 2*marginY,
		events:    make(chan widget.Event, 256),
	}

	t.buildViews()

	for _, m := range w.Messages() {
		t.msgs = append(t.msgs, displayMsg{role: m.Role, text: m.Content, reveal: -1, at: m.Time})
	}
	t.renderMessages()

	t.unsub = w.Subscribe(func(ev widget.Event) {
		t.events <- ev
	})
	go t.pumpEvents()

	return t
}

func (t *TUI) buildViews() {
	wc := t.cfg.Widget

	t.backdrop = tview.NewTextView().SetTextAlign(tview.AlignCenter)
	t.backdrop.SetText("\n\nCtrl+T or click the bubble to chat · Ctrl+C to quit")
	t.backdrop.SetBackgroundColor(tcell.ColorDefault)

	t.bubble = tview.NewButton("💬")
	t.bubble.SetSelectedFunc(t.widget.Toggle)

	t.msgView = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)

	t.attachView = tview.NewTextView().SetDynamicColors(true)
	t.noticeView = tview.NewTextView().SetDynamicColors(true)

	t.input = tview.NewInputField().
		SetLabel("> ").
		SetPlaceholder(wc.Placeholder)
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			t.submit()
		}
	})

	t.attachBar = tview.NewInputField().
		SetLabel("attach: ").
		SetPlaceholder("space-separated file paths, empty cancels")
	t.attachBar.SetDoneFunc(func(key tcell.Key) {
		t.finishAttach(key == tcell.KeyEnter)
	})

	t.panel = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.msgView, 0, 1, false).
		AddItem(t.attachView, 0, 0, false).
		AddItem(t.noticeView, 0, 0, false).
		AddItem(t.input, 1, 0, true)
	t.panel.SetBorder(true).SetTitle(" " + wc.Title + " ")

	t.pages = tview.NewPages().
		AddPage("backdrop", t.backdrop, true, true).
		AddPage("bubble", t.bubble, false, true).
		AddPage("panel", t.panel, false, false)

	t.app.SetRoot(t.pages, true)
	if t.cfg.TUI.Mouse {
		t.app.EnableMouse(true)
		t.app.SetMouseCapture(t.captureMouse)
	}
	t.app.SetInputCapture(t.captureKeys)
	t.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		w, h := screen.Size()
		if w != t.viewport.Width || h != t.viewport.Height {
			t.viewport = resize.Size{Width: w, Height: h}
			t.resizer.SetViewport(t.viewport)
			t.layout()
		}
		return false
	})
}

// Run blocks until the application exits.
func (t *TUI) Run() error {
	logger.Info("tui", "terminal host starting", map[string]interface{}{
		"session_id": t.widget.SessionID(),
	})
	defer t.unsub()
	return t.app.Run()
}

func (t *TUI) pumpEvents() {
	for ev := range t.events {
		ev := ev
		t.app.QueueUpdateDraw(func() {
			t.handleEvent(ev)
		})
	}
}

func (t *TUI) handleEvent(ev widget.Event) {
	switch e := ev.(type) {
	case widget.MessageEvent:
		m := displayMsg{role: e.Message.Role, text: e.Message.Content, reveal: -1, at: e.Message.Time}
		if e.Message.Role == widget.RoleBot && t.cfg.Widget.TypingSpeedMS > 0 {
			m.reveal = 0
			go t.animateTyping(len(t.msgs), len([]rune(m.text)))
		}
		t.msgs = append(t.msgs, m)
		t.renderMessages()
	case widget.NoticeEvent:
		t.notices = append(t.notices, e.Notice)
		t.renderNotices()
	case widget.NoticeExpiredEvent:
		for i, n := range t.notices {
			if n.ID == e.ID {
				t.notices = append(t.notices[:i], t.notices[i+1:]...)
				break
			}
		}
		t.renderNotices()
	case widget.OpenStateEvent:
		t.setPanelVisible(e.Open)
	case widget.PendingEvent:
		t.pending = e.Active
		t.renderMessages()
	case widget.AttachmentsEvent:
		t.attach = e.Rows
		t.renderAttachments()
	}
}

// animateTyping reveals message idx one rune per typing interval.
func (t *TUI) animateTyping(idx, total int) {
	interval := time.Duration(t.cfg.Widget.TypingSpeedMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		done := false
		t.app.QueueUpdateDraw(func() {
			if idx >= len(t.msgs) || t.msgs[idx].reveal < 0 {
				done = true
				return
			}
			t.msgs[idx].reveal++
			if t.msgs[idx].reveal >= total {
				t.msgs[idx].reveal = -1
				done = true
			}
			t.renderMessages()
		})
		if done {
			return
		}
	}
}

func (t *TUI) submit() {
	text := t.input.GetText()
	ctx := context.Background()
	go func() {
		if err := t.widget.Submit(ctx, text); err == nil {
			t.app.QueueUpdateDraw(func() {
				t.input.SetText("")
			})
		}
	}()
}

func (t *TUI) startAttach() {
	if !t.cfg.Widget.EnableFileUpload || t.attaching {
		return
	}
	t.attaching = true
	t.panel.RemoveItem(t.input)
	t.panel.AddItem(t.attachBar, 1, 0, true)
	t.app.SetFocus(t.attachBar)
}

func (t *TUI) finishAttach(accepted bool) {
	paths := strings.Fields(t.attachBar.GetText())
	t.attachBar.SetText("")
	t.attaching = false
	t.panel.RemoveItem(t.attachBar)
	t.panel.AddItem(t.input, 1, 0, true)
	t.app.SetFocus(t.input)

	if !accepted || len(paths) == 0 {
		return
	}

	files := make([]attach.PendingFile, 0, len(paths))
	for _, p := range paths {
		f, err := attach.FromPath(p)
		if err != nil {
			t.notices = append(t.notices, widget.Notice{ID: -1, Kind: widget.NoticeGeneric, Text: err.Error()})
			t.renderNotices()
			continue
		}
		files = append(files, f)
	}
	t.widget.SelectFiles(files)
}

func (t *TUI) captureKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlT:
		t.widget.Toggle()
		return nil
	case tcell.KeyEscape:
		if t.attaching {
			t.finishAttach(false)
			return nil
		}
		if t.widget.IsOpen() {
			t.widget.Close()
			return nil
		}
	case tcell.KeyCtrlO:
		if t.widget.IsOpen() {
			t.startAttach()
			return nil
		}
	case tcell.KeyCtrlX:
		if n := len(t.attach); n > 0 {
			t.widget.RemoveAttachment(n - 1)
			return nil
		}
	case tcell.KeyCtrlY:
		t.copyLastReply()
		return nil
	}
	return event
}

func (t *TUI) copyLastReply() {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].role == widget.RoleBot {
			if err := clipboard.WriteAll(t.msgs[i].text); err != nil {
				logger.Warn("tui", "clipboard copy failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}

// captureMouse routes pointer events into the resize controller before tview
// dispatches them to primitives. A drag on a handle consumes all pointer
// traffic until release.
func (t *TUI) captureMouse(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	if event == nil || !t.widget.IsOpen() {
		return event, action
	}
	x, y := event.Position()

	switch action {
	case tview.MouseLeftDown:
		handles := t.resizer.Handles(t.panelRect(), 1, 1)
		if dir, ok := resize.HitTest(handles, x, y); ok {
			if t.resizer.Begin(dir, resize.Point{X: x, Y: y}, t.panelRect()) {
				t.showDragCursor()
				return nil, action
			}
		}
	case tview.MouseMove:
		if t.resizer.Active() {
			if g, ok := t.resizer.Move(resize.Point{X: x, Y: y}); ok {
				t.applyGeometry(g)
			}
			return nil, action
		}
	case tview.MouseLeftUp:
		if t.resizer.Active() {
			t.resizer.End()
			t.hideDragCursor()
			return nil, action
		}
	}
	return event, action
}

func (t *TUI) showDragCursor() {
	t.panel.SetTitle(fmt.Sprintf(" %s · %s ", t.cfg.Widget.Title, t.resizer.Cursor()))
}

func (t *TUI) hideDragCursor() {
	t.panel.SetTitle(" " + t.cfg.Widget.Title + " ")
}

func (t *TUI) applyGeometry(g resize.Geometry) {
	t.panelW = g.Size.Width
	t.panelH = g.Size.Height
	t.bottomOff = g.Bottom
	if t.resizer.Anchor() == resize.AnchorRight {
		t.sideOff = g.Right
	} else {
		t.sideOff = g.Left
	}
	t.layout()
}

func (t *TUI) panelRect() resize.Rect {
	g := resize.Geometry{
		Size:   resize.Size{Width: t.panelW, Height: t.panelH},
		Bottom: t.bottomOff,
	}
	if t.resizer.Anchor() == resize.AnchorRight {
		g.Right = t.sideOff
		g.Left = t.viewport.Width - t.sideOff - t.panelW
	} else {
		g.Left = t.sideOff
		g.Right = t.viewport.Width - t.sideOff - t.panelW
	}
	return g.Rect(t.viewport, t.resizer.Anchor())
}

func (t *TUI) layout() {
	bx := t.viewport.Width - bubbleWidth - marginX
	if t.resizer.Anchor() == resize.AnchorLeft {
		bx = marginX
	}
	by := t.viewport.Height - bubbleHeight - marginY
	t.bubble.SetRect(bx, by, bubbleWidth, bubbleHeight)

	r := t.panelRect()
	t.panel.SetRect(r.X, r.Y, r.Width, r.Height)

	t.resizeRows()
}

// resizeRows sizes the fixed-height rows so the message view takes the rest.
func (t *TUI) resizeRows() {
	attachH := len(t.attach)
	if attachH > 4 {
		attachH = 4
	}
	noticeH := 0
	if len(t.notices) > 0 {
		noticeH = 1
	}
	t.panel.ResizeItem(t.attachView, attachH, 0)
	t.panel.ResizeItem(t.noticeView, noticeH, 0)
}

func (t *TUI) setPanelVisible(open bool) {
	if open {
		t.pages.ShowPage("panel")
		t.app.SetFocus(t.input)
		t.animateOpen()
	} else {
		t.resizer.End()
		t.pages.HidePage("panel")
		t.app.SetFocus(t.bubble)
	}
	t.layout()
}

// animateOpen grows the panel from the bottom over the configured duration.
func (t *TUI) animateOpen() {
	total := time.Duration(t.cfg.Widget.AnimationDurationMS) * time.Millisecond
	if total <= 0 {
		return
	}
	const steps = 6
	target := t.panelH
	go func() {
		for i := 1; i <= steps; i++ {
			time.Sleep(total / steps)
			h := target * i / steps
			t.app.QueueUpdateDraw(func() {
				if !t.widget.IsOpen() {
					return
				}
				t.panelH = h
				t.layout()
			})
		}
	}()
}

func (t *TUI) renderMessages() {
	theme := t.cfg.Widget.ThemeColor
	if theme == "" {
		theme = "blue"
	}

	var b strings.Builder
	for _, m := range t.msgs {
		stamp := m.at.Format("15:04")
		switch m.role {
		case widget.RoleUser:
			fmt.Fprintf(&b, "[gray]%s[-] [::b]You[::-]\n%s\n\n", stamp, tview.Escape(m.text))
		default:
			fmt.Fprintf(&b, "[gray]%s[-] [%s::b]%s[-::-]\n", stamp, theme, tview.Escape(t.cfg.Widget.Title))
			if m.reveal >= 0 {
				runes := []rune(m.text)
				if m.reveal < len(runes) {
					b.WriteString(tview.Escape(string(runes[:m.reveal])))
				} else {
					b.WriteString(tview.Escape(m.text))
				}
				b.WriteString("▌\n\n")
			} else {
				b.WriteString(RenderMarkdown(m.text))
				b.WriteString("\n\n")
			}
		}
	}
	if t.pending {
		fmt.Fprintf(&b, "[%s]● ● ●[-] [gray]thinking...[-]\n", theme)
	}
	t.msgView.SetText(b.String())
	t.msgView.ScrollToEnd()
}

func (t *TUI) renderAttachments() {
	var b strings.Builder
	for i, row := range t.attach {
		fmt.Fprintf(&b, "[gray]%d.[-] 📎 %s [gray](%s)[-]\n", i+1, tview.Escape(row.Name), row.HumanSize)
	}
	t.attachView.SetText(strings.TrimRight(b.String(), "\n"))
	t.resizeRows()
}

func (t *TUI) renderNotices() {
	texts := make([]string, 0, len(t.notices))
	for _, n := range t.notices {
		texts = append(texts, tview.Escape(n.Text))
	}
	t.noticeView.SetText("[red]" + strings.Join(texts, " · ") + "[-]")
	t.resizeRows()
}
