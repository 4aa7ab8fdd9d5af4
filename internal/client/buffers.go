package client

// SwitchDirection selects how the buffer cursor moves during review.
type SwitchDirection int

const (
	SwitchForward SwitchDirection = iota
	SwitchBackward
	SwitchTop
	SwitchBottom
)

// Buffer is one named review channel of spoken lines with a cursor.
type Buffer struct {
	Name string

	items []string
	index int
}

func (b *Buffer) Len() int { return len(b.items) }

// CurrentItem returns the line under the cursor, or "" for an empty buffer.
func (b *Buffer) CurrentItem() string {
	if len(b.items) == 0 {
		return ""
	}
	return b.items[b.index]
}

func (b *Buffer) setIndex(i int) {
	if i >= 0 && i < len(b.items) {
		b.index = i
	}
}

// Move steps the cursor and returns the line it lands on.
func (b *Buffer) Move(direction SwitchDirection) string {
	switch direction {
	case SwitchForward:
		b.setIndex(b.index + 1)
	case SwitchBackward:
		b.setIndex(b.index - 1)
	case SwitchTop:
		b.setIndex(0)
	case SwitchBottom:
		b.setIndex(len(b.items) - 1)
	}
	return b.CurrentItem()
}

// BufferManager keeps the ordered set of review buffers. The "Main" buffer is
// always first and mirrors every line inserted anywhere else, so reviewing it
// replays the whole session.
type BufferManager struct {
	buffers []*Buffer
	current int
}

const mainBufferName = "Main"

func NewBufferManager() *BufferManager {
	return &BufferManager{buffers: []*Buffer{{Name: mainBufferName}}}
}

// Insert appends a line to the named buffer, creating the buffer on first
// use, and mirrors it into Main.
func (bm *BufferManager) Insert(name, line string) {
	if name == "" || name == mainBufferName {
		bm.buffers[0].items = append(bm.buffers[0].items, line)
		return
	}
	buf := bm.Get(name)
	if buf == nil {
		buf = &Buffer{Name: name}
		bm.buffers = append(bm.buffers, buf)
	}
	buf.items = append(buf.items, line)
	bm.buffers[0].items = append(bm.buffers[0].items, line)
}

// Get returns the named buffer, or nil.
func (bm *BufferManager) Get(name string) *Buffer {
	for _, b := range bm.buffers {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Current returns the buffer under the manager cursor.
func (bm *BufferManager) Current() *Buffer {
	return bm.buffers[bm.current]
}

// Switch moves the manager cursor between buffers.
func (bm *BufferManager) Switch(direction SwitchDirection) *Buffer {
	switch direction {
	case SwitchForward:
		if bm.current+1 < len(bm.buffers) {
			bm.current++
		}
	case SwitchBackward:
		if bm.current > 0 {
			bm.current--
		}
	case SwitchTop:
		bm.current = 0
	case SwitchBottom:
		bm.current = len(bm.buffers) - 1
	}
	return bm.Current()
}
