package viewer

import "gocv.io/x/gocv"

// Window names.
const (
	WindowOutput = "output"
	WindowEdges  = "edges"
	WindowCrop   = "crop"
)

// Display is an on-screen image window.
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
	SetWindowTitle(title string)
	Close() error
}

// MouseSource is a Display that reports mouse events.
type MouseSource interface {
	OnMouse(fn func(event, x, y int))
}

// WindowFactory opens a named window.
type WindowFactory func(name string) Display

// Window adapts a highgui window to Display and MouseSource.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a highgui window. Must be called from the main goroutine.
func NewWindow(name string) Display {
	return &Window{win: gocv.NewWindow(name)}
}

func (w *Window) IMShow(img gocv.Mat) {
	w.win.IMShow(img)
}

func (w *Window) WaitKey(delay int) int {
	return w.win.WaitKey(delay)
}

func (w *Window) SetWindowTitle(title string) {
	w.win.SetWindowTitle(title)
}

func (w *Window) Close() error {
	return w.win.Close()
}

// OnMouse registers fn for mouse events on this window.
func (w *Window) OnMouse(fn func(event, x, y int)) {
	w.win.SetMouseHandler(func(event, x, y, flags int, _ interface{}) {
		fn(event, x, y)
	}, nil)
}
