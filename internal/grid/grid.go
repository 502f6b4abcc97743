// Package grid implements the terminal emulator's backing store (a
// cols x rows cell array with a cursor and pen state) and the byte-fed
// ANSI/CSI/SGR state machine that drives it.
package grid

// Cell is a single character cell: a codepoint and its colour attributes.
type Cell struct {
	Ch rune
	Fg Color
	Bg Color
}

func blankCell() Cell {
	return Cell{Ch: ' ', Fg: Default, Bg: Default}
}

// Cursor is a position within a Grid. Always kept in bounds.
type Cursor struct {
	Col int
	Row int
}

// Grid is a rectangular array of cells plus cursor and pen state. There is
// no scrollback: moving the cursor past the last row saturates at rows-1.
type Grid struct {
	Cols int
	Rows int

	cells []Cell // row-major, len == Cols*Rows

	Cursor Cursor

	// CurrentFg/CurrentBg are the "pen" applied to every printed cell.
	CurrentFg Color
	CurrentBg Color
}

// New allocates a Grid of the given size, cells blank and cursor at (0,0).
// Panics if cols or rows is not positive — a Grid without positive
// dimensions is not a valid value per the invariants this package enforces.
func New(cols, rows int) *Grid {
	if cols <= 0 || rows <= 0 {
		panic("grid: cols and rows must be positive")
	}
	g := &Grid{
		Cols:      cols,
		Rows:      rows,
		cells:     make([]Cell, cols*rows),
		CurrentFg: Default,
		CurrentBg: Default,
	}
	for i := range g.cells {
		g.cells[i] = blankCell()
	}
	return g
}

func (g *Grid) index(col, row int) int {
	return row*g.Cols + col
}

// At returns the cell at (col, row). Callers must keep col/row in bounds;
// Grid's own cursor movements always do.
func (g *Grid) At(col, row int) Cell {
	return g.cells[g.index(col, row)]
}

func (g *Grid) set(col, row int, c Cell) {
	g.cells[g.index(col, row)] = c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *Grid) clampCursor() {
	g.Cursor.Col = clamp(g.Cursor.Col, 0, g.Cols-1)
	g.Cursor.Row = clamp(g.Cursor.Row, 0, g.Rows-1)
}

// ResetPen restores the pen to (Default, Default).
func (g *Grid) ResetPen() {
	g.CurrentFg = Default
	g.CurrentBg = Default
}

// EraseAll clears every cell to blank and moves the cursor to (0,0). Used
// by ED mode 2 and RIS.
func (g *Grid) EraseAll() {
	for i := range g.cells {
		g.cells[i] = blankCell()
	}
	g.Cursor = Cursor{}
}

// EraseDisplay implements ED (CSI J) modes 0/1/2.
func (g *Grid) EraseDisplay(mode int) {
	switch mode {
	case 0:
		g.eraseRowRange(g.Cursor.Row, g.Cursor.Col, g.Cols)
		for row := g.Cursor.Row + 1; row < g.Rows; row++ {
			g.eraseRowRange(row, 0, g.Cols)
		}
	case 1:
		for row := 0; row < g.Cursor.Row; row++ {
			g.eraseRowRange(row, 0, g.Cols)
		}
		g.eraseRowRange(g.Cursor.Row, 0, g.Cursor.Col+1)
	case 2:
		g.EraseAll()
	}
}

// EraseLine implements EL (CSI K) modes 0/1/2, scoped to the cursor's row.
// The cursor itself never moves.
func (g *Grid) EraseLine(mode int) {
	row := g.Cursor.Row
	switch mode {
	case 0:
		g.eraseRowRange(row, g.Cursor.Col, g.Cols)
	case 1:
		g.eraseRowRange(row, 0, g.Cursor.Col+1)
	case 2:
		g.eraseRowRange(row, 0, g.Cols)
	}
}

// eraseRowRange blanks columns [from, to) of row. to is clamped to Cols.
func (g *Grid) eraseRowRange(row, from, to int) {
	if to > g.Cols {
		to = g.Cols
	}
	for col := from; col < to; col++ {
		g.set(col, row, blankCell())
	}
}

// InsertLines implements IL (CSI L): shift rows [y, rows-n) down to
// [y+n, rows), then erase rows [y, y+n). This is the corrected behavior —
// an actual shift, not a clear-in-place.
func (g *Grid) InsertLines(n int) {
	y := g.Cursor.Row
	if n <= 0 {
		return
	}
	if n > g.Rows-y {
		n = g.Rows - y
	}
	for row := g.Rows - 1; row >= y+n; row-- {
		g.copyRow(row-n, row)
	}
	for row := y; row < y+n; row++ {
		g.eraseRowRange(row, 0, g.Cols)
	}
}

// DeleteLines implements DL (CSI M): shift rows [y+n, rows) up to
// [y, rows-n), then erase the vacated rows at the bottom.
func (g *Grid) DeleteLines(n int) {
	y := g.Cursor.Row
	if n <= 0 {
		return
	}
	if n > g.Rows-y {
		n = g.Rows - y
	}
	for row := y; row < g.Rows-n; row++ {
		g.copyRow(row+n, row)
	}
	for row := g.Rows - n; row < g.Rows; row++ {
		g.eraseRowRange(row, 0, g.Cols)
	}
}

func (g *Grid) copyRow(src, dst int) {
	copy(g.cells[g.index(0, dst):g.index(0, dst)+g.Cols], g.cells[g.index(0, src):g.index(0, src)+g.Cols])
}

// Resize allocates a new backing array of the given size, copies the
// overlapping region cell-for-cell from the old origin, fills the
// remainder with blanks, and clamps the cursor. The pen is preserved.
func (g *Grid) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		panic("grid: cols and rows must be positive")
	}
	next := make([]Cell, cols*rows)
	for i := range next {
		next[i] = blankCell()
	}
	copyCols := cols
	if g.Cols < copyCols {
		copyCols = g.Cols
	}
	copyRows := rows
	if g.Rows < copyRows {
		copyRows = g.Rows
	}
	for row := 0; row < copyRows; row++ {
		srcStart := row * g.Cols
		dstStart := row * cols
		copy(next[dstStart:dstStart+copyCols], g.cells[srcStart:srcStart+copyCols])
	}
	g.cells = next
	g.Cols = cols
	g.Rows = rows
	g.clampCursor()
}

// Snapshot is a read-only view of a Grid suitable for a single render.
type Snapshot struct {
	Cols   int
	Rows   int
	Cells  []Cell
	Cursor Cursor
}

// Snapshot copies the current grid state. The copy is intentional: callers
// (renderers) read it outside the session's lock.
func (g *Grid) Snapshot() Snapshot {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return Snapshot{Cols: g.Cols, Rows: g.Rows, Cells: cells, Cursor: g.Cursor}
}

// Cell returns the cell at (col, row) in the snapshot.
func (s Snapshot) Cell(col, row int) Cell {
	return s.Cells[row*s.Cols+col]
}
