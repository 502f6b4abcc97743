package cmd

import (
	"bufio"
	"fmt"
	"io"

	"multiplex/internal/grid"
	"multiplex/internal/layout"
	"multiplex/internal/workspace"
)

// fgCode and bgCode map a grid.Color to its SGR parameter. Index by
// grid.Color; Default maps to the reset codes (39/49).
var fgCode = map[grid.Color]int{
	grid.Black: 30, grid.Red: 31, grid.Green: 32, grid.Yellow: 33,
	grid.Blue: 34, grid.Magenta: 35, grid.Cyan: 36, grid.White: 37,
	grid.BrightBlack: 90, grid.BrightRed: 91, grid.BrightGreen: 92, grid.BrightYellow: 93,
	grid.BrightBlue: 94, grid.BrightMagenta: 95, grid.BrightCyan: 96, grid.BrightWhite: 97,
	grid.Default: 39,
}

var bgCode = map[grid.Color]int{
	grid.Black: 40, grid.Red: 41, grid.Green: 42, grid.Yellow: 43,
	grid.Blue: 44, grid.Magenta: 45, grid.Cyan: 46, grid.White: 47,
	grid.BrightBlack: 100, grid.BrightRed: 101, grid.BrightGreen: 102, grid.BrightYellow: 103,
	grid.BrightBlue: 104, grid.BrightMagenta: 105, grid.BrightCyan: 106, grid.BrightWhite: 107,
	grid.Default: 49,
}

// renderer draws a Workspace's visible sessions into an output stream each
// tick. It holds no session state of its own — every frame is redrawn in
// full, which keeps it correct across resizes and session churn at the
// cost of some flicker-free-ness a damage-tracked renderer would avoid.
type renderer struct {
	out *bufio.Writer
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{out: bufio.NewWriter(w)}
}

// Draw paints every session's snapshot into its layout rectangle, then
// positions the real cursor at the active session's cursor position.
func (r *renderer) Draw(ws *workspace.Workspace, mode layout.Mode, vp layout.Viewport) {
	ids := ws.IDs()
	mapping := layout.Layout(vp, ids, mode)

	r.out.WriteString("\x1b[H")
	curFg, curBg := grid.Default, grid.Default
	r.out.WriteString("\x1b[39;49m")

	for _, id := range ids {
		rect := mapping[id]
		snap, ok := ws.Snapshot(id)
		if !ok || rect.W <= 0 || rect.H <= 0 {
			continue
		}
		r.drawSession(snap.Grid, rect, &curFg, &curBg)
	}

	r.out.WriteString("\x1b[39;49m")
	if active, ok := ws.ActiveID(); ok {
		if snap, ok := ws.Snapshot(active); ok {
			rect := mapping[active]
			row := rect.Y + snap.Grid.Cursor.Row + 1
			col := rect.X + snap.Grid.Cursor.Col + 1
			fmt.Fprintf(r.out, "\x1b[%d;%dH", row, col)
		}
	}
	r.out.Flush()
}

func (r *renderer) drawSession(snap grid.Snapshot, rect layout.Rect, curFg, curBg *grid.Color) {
	rows := rect.H
	if snap.Rows < rows {
		rows = snap.Rows
	}
	cols := rect.W
	if snap.Cols < cols {
		cols = snap.Cols
	}

	for row := 0; row < rows; row++ {
		fmt.Fprintf(r.out, "\x1b[%d;%dH", rect.Y+row+1, rect.X+1)
		for col := 0; col < cols; col++ {
			cell := snap.Cell(col, row)
			if cell.Fg != *curFg || cell.Bg != *curBg {
				fmt.Fprintf(r.out, "\x1b[%d;%dm", fgCode[cell.Fg], bgCode[cell.Bg])
				*curFg, *curBg = cell.Fg, cell.Bg
			}
			r.out.WriteRune(cell.Ch)
		}
	}
}

// drawConflictBanner writes a one-line status hint at the bottom of the
// viewport when Conflicts() is non-empty. Purely informational — the core
// has no notion of a "banner," this is reference-cmd presentation only.
func (r *renderer) drawConflictBanner(vp layout.Viewport, conflicts []workspace.Conflict) {
	if len(conflicts) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\x1b[%d;1H\x1b[33m", vp.H)
	fmt.Fprintf(r.out, "conflict: %s touched by %d sessions", conflicts[0].File, len(conflicts[0].SessionIDs))
	r.out.WriteString("\x1b[0m")
	r.out.Flush()
}
