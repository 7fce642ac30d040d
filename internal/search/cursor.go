package search

// NavMode decides what Up/Down do at the ends of the result list.
type NavMode int

const (
	// NavClamp stops at the first and last result.
	NavClamp NavMode = iota
	// NavWrap jumps from the last result to the first and back.
	NavWrap
)

// Key is a navigation key of the combobox.
type Key int

const (
	KeyUp Key = iota + 1
	KeyDown
	KeyEnter
	KeyEscape
	KeyTab
)

// Action is what the combobox should do after a key.
type Action int

const (
	ActionNone Action = iota
	ActionMove
	ActionCommit
	ActionDismiss
)

// Cursor tracks the highlighted result. Index -1 means nothing is highlighted.
type Cursor struct {
	mode  NavMode
	size  int
	index int
}

// NewCursor constructs a Cursor over an empty result list.
func NewCursor(mode NavMode) *Cursor {
	return &Cursor{mode: mode, index: -1}
}

// Reset points the cursor at a fresh result list with nothing highlighted.
func (c *Cursor) Reset(size int) {
	if size < 0 {
		size = 0
	}
	c.size = size
	c.index = -1
}

// Index returns the highlighted index or -1.
func (c *Cursor) Index() int {
	return c.index
}

// Size returns the number of results the cursor moves over.
func (c *Cursor) Size() int {
	return c.size
}

// Handle applies a key. For ActionCommit the returned index is the committed
// result: the highlighted one, or the first when nothing is highlighted.
func (c *Cursor) Handle(k Key) (Action, int) {
	switch k {
	case KeyUp:
		if c.size == 0 {
			return ActionNone, -1
		}
		c.move(-1)
		return ActionMove, c.index
	case KeyDown:
		if c.size == 0 {
			return ActionNone, -1
		}
		c.move(1)
		return ActionMove, c.index
	case KeyEnter:
		if c.size == 0 {
			return ActionNone, -1
		}
		idx := c.index
		if idx < 0 {
			idx = 0
		}
		return ActionCommit, idx
	case KeyEscape, KeyTab:
		c.index = -1
		return ActionDismiss, -1
	default:
		return ActionNone, c.index
	}
}

func (c *Cursor) move(delta int) {
	if c.index < 0 {
		if delta > 0 || c.mode == NavClamp {
			c.index = 0
		} else {
			c.index = c.size - 1
		}
		return
	}
	next := c.index + delta
	switch c.mode {
	case NavWrap:
		next = (next%c.size + c.size) % c.size
	default:
		if next < 0 {
			next = 0
		}
		if next > c.size-1 {
			next = c.size - 1
		}
	}
	c.index = next
}
