package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/board"
	"LiveCanvas/internal/export"
)

// BoardWidget shows a session's surface with the peer cursor layer on top
// and feeds pointer input back into the session. Canvas coordinates are
// widget coordinates.
type BoardWidget struct {
	widget.BaseWidget

	mu      sync.RWMutex
	session *board.Session
	drawing bool

	surface   *canvas.Image
	overlay   *canvas.Image
	statusBar *widget.Label
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

func NewBoardWidget() *BoardWidget {
	b := &BoardWidget{
		surface:   canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		overlay:   canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		statusBar: widget.NewLabel("Ready"),
	}
	for _, img := range []*canvas.Image{b.surface, b.overlay} {
		img.FillMode = canvas.ImageFillStretch
		img.ScaleMode = canvas.ImageScalePixels
	}
	b.ExtendBaseWidget(b)
	return b
}

// Bind switches the widget to s. The previous session is left to the
// caller to close.
func (b *BoardWidget) Bind(s *board.Session) {
	b.mu.Lock()
	b.session = s
	b.drawing = false
	b.mu.Unlock()

	if size := b.Size(); s != nil && size.Width > 0 && size.Height > 0 {
		if err := s.Resize(int(size.Width), int(size.Height)); err != nil {
			log.Warn().Err(err).Msg("resize bound session")
		}
	}
	b.Changed()
}

func (b *BoardWidget) Session() *board.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Changed schedules a redraw on the UI goroutine. It is safe to call from
// any goroutine and does not block.
func (b *BoardWidget) Changed() {
	fyne.Do(b.redraw)
}

func (b *BoardWidget) redraw() {
	s := b.Session()
	if s == nil {
		return
	}
	if img := s.Image(); img != nil {
		b.surface.Image = img
		b.surface.Refresh()
	}
	if img := s.Overlay(); img != nil {
		b.overlay.Image = img
		b.overlay.Refresh()
	}
}

// SetStatus updates the status line from any goroutine.
func (b *BoardWidget) SetStatus(text string) {
	fyne.Do(func() { b.statusBar.SetText(text) })
}

func (b *BoardWidget) StatusBar() *widget.Label { return b.statusBar }

// ClearPaths wipes the board for everyone in the room.
func (b *BoardWidget) ClearPaths() {
	if s := b.Session(); s != nil {
		s.Clear()
	}
}

// SaveToFile exports the composed surface. The format follows the file
// extension; anything but .pdf is written as PNG.
func (b *BoardWidget) SaveToFile(writer fyne.URIWriteCloser) {
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("close export writer")
		}
	}()

	s := b.Session()
	if s == nil {
		b.SetStatus("Nothing to save")
		return
	}
	img := s.Image()
	if img == nil {
		b.SetStatus("Session closed")
		return
	}

	write := export.PNG
	if strings.EqualFold(writer.URI().Extension(), ".pdf") {
		write = export.PDF
	}
	if err := write(writer, img); err != nil {
		log.Error().Err(err).Str("uri", writer.URI().String()).Msg("export failed")
		b.SetStatus("Error saving file")
		return
	}
	log.Info().Str("uri", writer.URI().String()).Msg("board exported")
	b.SetStatus(fmt.Sprintf("Saved %s", writer.URI().Name()))
}

func (b *BoardWidget) Resize(size fyne.Size) {
	b.BaseWidget.Resize(size)
	s := b.Session()
	if s == nil || size.Width < 1 || size.Height < 1 {
		return
	}
	if err := s.Resize(int(size.Width), int(size.Height)); err != nil {
		log.Warn().Err(err).Msg("resize session")
	}
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	s := b.Session()
	if s == nil {
		return
	}
	b.mu.Lock()
	b.drawing = true
	b.mu.Unlock()
	s.PointerDown(float64(e.Position.X), float64(e.Position.Y))
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonPrimary {
		b.endStroke(false)
	}
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.mu.RLock()
	s, drawing := b.session, b.drawing
	b.mu.RUnlock()
	if s == nil || !drawing {
		return
	}
	s.PointerMove(float64(e.Position.X), float64(e.Position.Y))
}

func (b *BoardWidget) DragEnd() { b.endStroke(false) }

func (b *BoardWidget) MouseIn(e *desktop.MouseEvent) { b.MouseMoved(e) }

func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	if s := b.Session(); s != nil {
		s.Hover(float64(e.Position.X), float64(e.Position.Y))
	}
}

// MouseOut cancels a stroke that leaves the board.
func (b *BoardWidget) MouseOut() { b.endStroke(true) }

func (b *BoardWidget) endStroke(cancel bool) {
	b.mu.Lock()
	s, drawing := b.session, b.drawing
	b.drawing = false
	b.mu.Unlock()
	if s == nil || !drawing {
		return
	}
	if cancel {
		s.PointerCancel()
		return
	}
	s.PointerUp()
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.White)
	return widget.NewSimpleRenderer(container.NewStack(background, b.surface, b.overlay))
}

func (b *BoardWidget) MinSize() fyne.Size { return fyne.NewSize(300, 300) }
