package resize

// Handle is a hit region on the panel boundary that starts a drag in its
// direction.
type Handle struct {
	Dir  Direction
	Rect Rect
}

// Handles lays out the eight hit regions for a panel: corner×corner squares
// on the corners and thickness-deep strips along each side, inset by the
// corners so corner hits always win. Pixel hosts use corner=12, thickness=6;
// the terminal host uses 1 for both. Returns nil when resizing is disabled.
func (c *Controller) Handles(panel Rect, corner, thickness int) []Handle {
	if !c.enabled {
		return nil
	}
	if corner < 1 {
		corner = 1
	}
	if thickness < 1 {
		thickness = 1
	}

	x, y, w, h := panel.X, panel.Y, panel.Width, panel.Height
	edgeW := w - 2*corner
	edgeH := h - 2*corner
	if edgeW < 0 {
		edgeW = 0
	}
	if edgeH < 0 {
		edgeH = 0
	}

	return []Handle{
		{NorthWest, Rect{x, y, corner, corner}},
		{NorthEast, Rect{x + w - corner, y, corner, corner}},
		{SouthWest, Rect{x, y + h - corner, corner, corner}},
		{SouthEast, Rect{x + w - corner, y + h - corner, corner, corner}},
		{North, Rect{x + corner, y, edgeW, thickness}},
		{South, Rect{x + corner, y + h - thickness, edgeW, thickness}},
		{West, Rect{x, y + corner, thickness, edgeH}},
		{East, Rect{x + w - thickness, y + corner, thickness, edgeH}},
	}
}

// HitTest returns the direction of the first handle containing the point.
func HitTest(handles []Handle, x, y int) (Direction, bool) {
	for _, h := range handles {
		if h.Rect.Contains(x, y) {
			return h.Dir, true
		}
	}
	return 0, false
}
