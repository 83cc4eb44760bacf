package preprocessor

import "github.com/fwessels/cppx/internal/token"

// ---------------- Conditionals ----------------

type condStack struct {
	stack []condFrame
}

type condFrame struct {
	parentActive bool
	taken        bool // some branch of this frame was selected
	sawElse      bool
	active       bool
	pos          token.Position
}

func newCondStack() *condStack  { return &condStack{} }
func (c *condStack) Depth() int { return len(c.stack) }

func (c *condStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].active
}

// Push opens a frame. cond is ignored when the enclosing region is inactive.
func (c *condStack) Push(cond bool, pos token.Position) {
	parent := c.Active()
	active := parent && cond
	c.stack = append(c.stack, condFrame{
		parentActive: parent,
		taken:        active,
		active:       active,
		pos:          pos,
	})
}

// NeedsCondition reports whether an #elif at this point has to evaluate its
// expression: the parent is active and no branch was taken yet.
func (c *condStack) NeedsCondition() bool {
	if len(c.stack) == 0 {
		return false
	}
	top := c.stack[len(c.stack)-1]
	return top.parentActive && !top.taken
}

func (c *condStack) SawElse() bool {
	return len(c.stack) > 0 && c.stack[len(c.stack)-1].sawElse
}

func (c *condStack) Elif(cond bool) {
	if len(c.stack) == 0 {
		return
	}
	top := &c.stack[len(c.stack)-1]
	if !top.parentActive || top.taken {
		top.active = false
		return
	}
	top.active = cond
	top.taken = cond
}

func (c *condStack) Else() {
	if len(c.stack) == 0 {
		return
	}
	top := &c.stack[len(c.stack)-1]
	top.sawElse = true
	if !top.parentActive {
		top.active = false
		return
	}
	top.active = !top.taken
	top.taken = true
}

func (c *condStack) Pop() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Unclosed returns where the innermost open frame started.
func (c *condStack) Unclosed() token.Position {
	if len(c.stack) == 0 {
		return token.Position{}
	}
	return c.stack[len(c.stack)-1].pos
}
