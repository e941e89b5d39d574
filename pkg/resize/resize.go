// Package resize implements pointer-drag resizing of the chat panel. A drag
// starts on one of eight edge/corner handles, converts pointer deltas into a
// new panel size and anchored-side offset, and clamps against configured
// bounds. The controller is host-agnostic: pixel and terminal-cell hosts feed
// it the same pointer coordinates.
package resize

// Direction identifies which edge or corner of the panel a drag acts on.
// Composite directions are bitwise unions of their edges.
type Direction int

const (
	North Direction = 1 << iota
	South
	East
	West

	NorthEast = North | East
	NorthWest = North | West
	SouthEast = South | East
	SouthWest = South | West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "n"
	case South:
		return "s"
	case East:
		return "e"
	case West:
		return "w"
	case NorthEast:
		return "ne"
	case NorthWest:
		return "nw"
	case SouthEast:
		return "se"
	case SouthWest:
		return "sw"
	}
	return ""
}

// Cursor returns the CSS-style cursor name shown while dragging this
// direction.
func (d Direction) Cursor() string {
	if s := d.String(); s != "" {
		return s + "-resize"
	}
	return "default"
}

// Directions lists all eight handle directions in a stable order.
func Directions() []Direction {
	return []Direction{North, South, East, West, NorthEast, NorthWest, SouthEast, SouthWest}
}

type Point struct {
	X, Y int
}

type Size struct {
	Width, Height int
}

// Edges holds the offsets of the panel's sides from the matching viewport
// sides. They are measured from the panel's actual bounding rect, never from
// styling, so a drag behaves the same however the panel was last positioned.
type Edges struct {
	Left, Right, Top, Bottom int
}

// Rect is a panel bounding box in viewport coordinates, origin top-left.
type Rect struct {
	X, Y, Width, Height int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// EdgesIn computes the rect's side offsets within the given viewport.
func (r Rect) EdgesIn(viewport Size) Edges {
	return Edges{
		Left:   r.X,
		Right:  viewport.Width - (r.X + r.Width),
		Top:    r.Y,
		Bottom: viewport.Height - (r.Y + r.Height),
	}
}

// Bounds limits panel dimensions. Width and height clamp independently.
type Bounds struct {
	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
}

func (b Bounds) ClampWidth(w int) int {
	if w < b.MinWidth {
		return b.MinWidth
	}
	if b.MaxWidth > 0 && w > b.MaxWidth {
		return b.MaxWidth
	}
	return w
}

func (b Bounds) ClampHeight(h int) int {
	if h < b.MinHeight {
		return b.MinHeight
	}
	if b.MaxHeight > 0 && h > b.MaxHeight {
		return b.MaxHeight
	}
	return h
}

// Anchor names the horizontal side whose offset positions the panel.
// Vertically the panel is always bottom-anchored.
type Anchor int

const (
	AnchorRight Anchor = iota
	AnchorLeft
)

// Session captures the geometry of one in-progress drag. It is created on
// pointer-down and holds only start-of-gesture values; every move recomputes
// from these, so intermediate moves never accumulate error.
type Session struct {
	Direction    Direction
	StartPointer Point
	StartSize    Size
	StartEdges   Edges
}

// Geometry is the outcome of applying a move: the clamped size plus the
// side offsets. Only the anchored horizontal offset and the bottom offset
// are meant to be applied by the host; the rest are derived for callers
// that want the full box.
type Geometry struct {
	Size   Size
	Left   int
	Right  int
	Bottom int
}

// Rect converts the geometry into a bounding box within the viewport.
func (g Geometry) Rect(viewport Size, anchor Anchor) Rect {
	x := g.Left
	if anchor == AnchorRight {
		x = viewport.Width - g.Right - g.Size.Width
	}
	y := viewport.Height - g.Bottom - g.Size.Height
	return Rect{X: x, Y: y, Width: g.Size.Width, Height: g.Size.Height}
}

// Controller owns at most one resize session at a time. All methods must be
// called from the host's event loop; the controller does no locking of its
// own.
type Controller struct {
	bounds  Bounds
	anchor  Anchor
	enabled bool

	viewport Size
	session  *Session
}

func NewController(bounds Bounds, anchor Anchor, enabled bool) *Controller {
	return &Controller{bounds: bounds, anchor: anchor, enabled: enabled}
}

// SetViewport records the host surface size used to measure edge offsets.
func (c *Controller) SetViewport(s Size) {
	c.viewport = s
}

func (c *Controller) Enabled() bool { return c.enabled }

func (c *Controller) Anchor() Anchor { return c.anchor }

// Active reports whether a drag session is in progress.
func (c *Controller) Active() bool { return c.session != nil }

// Cursor returns the cursor name for the active session, or "default".
func (c *Controller) Cursor() string {
	if c.session == nil {
		return "default"
	}
	return c.session.Direction.Cursor()
}

// SelectionSuppressed reports whether the host should disable text selection.
// True for the whole lifetime of a drag.
func (c *Controller) SelectionSuppressed() bool { return c.session != nil }

// Begin starts a session for a pointer-down on a handle. It measures the
// panel's edges against the current viewport. Returns false when resizing is
// disabled or another session is already active.
func (c *Controller) Begin(dir Direction, pointer Point, panel Rect) bool {
	if !c.enabled || c.session != nil || dir.String() == "" {
		return false
	}
	c.session = &Session{
		Direction:    dir,
		StartPointer: pointer,
		StartSize:    Size{Width: panel.Width, Height: panel.Height},
		StartEdges:   panel.EdgesIn(c.viewport),
	}
	return true
}

// Move applies the pointer delta for the active session and returns the
// resulting geometry. Out-of-range deltas are clamped, never rejected.
// Returns false when no session is active.
func (c *Controller) Move(pointer Point) (Geometry, bool) {
	s := c.session
	if s == nil {
		return Geometry{}, false
	}

	dx := pointer.X - s.StartPointer.X
	dy := pointer.Y - s.StartPointer.Y

	width := s.StartSize.Width
	height := s.StartSize.Height

	if s.Direction&North != 0 {
		height -= dy
	}
	if s.Direction&South != 0 {
		height += dy
	}
	if s.Direction&East != 0 {
		width += dx
	}
	if s.Direction&West != 0 {
		width -= dx
	}

	width = c.bounds.ClampWidth(width)
	height = c.bounds.ClampHeight(height)

	g := Geometry{
		Size:   Size{Width: width, Height: height},
		Left:   s.StartEdges.Left,
		Right:  s.StartEdges.Right,
		Bottom: s.StartEdges.Bottom,
	}

	// Only the edge being dragged moves; the opposite edge stays put. The
	// offset therefore follows the clamped width, not the raw delta, so a
	// drag past the bounds never shifts the whole panel.
	grown := width - s.StartSize.Width
	switch {
	case s.Direction&East != 0:
		g.Right = s.StartEdges.Right - grown
		g.Left = s.StartEdges.Left
	case s.Direction&West != 0:
		g.Left = s.StartEdges.Left - grown
		g.Right = s.StartEdges.Right
	}

	return g, true
}

// End closes the active session, if any. Idempotent.
func (c *Controller) End() {
	c.session = nil
}
