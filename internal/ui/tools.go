package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/state"
)

// Swatches offered in the toolbar, in display order.
var paletteNames = []string{"black", "red", "green", "blue", "yellow", "orange", "purple", "brown"}

type colorSwatch struct {
	widget.BaseWidget
	Name     string
	Color    color.Color
	OnTapped func(string)
}

func newColorSwatch(name string, tapped func(string)) *colorSwatch {
	c, err := state.ParseColor(name)
	if err != nil {
		c = color.RGBA{A: 255}
	}
	s := &colorSwatch{Name: name, Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Name)
	}
}

// ToolbarActions are the session-level commands the window provides.
type ToolbarActions struct {
	Save    func()
	NewRoom func()
	Join    func()
	Share   func()
}

func NewToolbar(board *BoardWidget, actions ToolbarActions) fyne.CanvasObject {
	setMode := func(m state.Mode) {
		if s := board.Session(); s != nil {
			if err := s.SetMode(m); err != nil {
				log.Warn().Err(err).Str("mode", string(m)).Msg("set mode")
			}
		}
	}
	tools := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() { setMode(state.ModePen) }),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() { setMode(state.ModeErase) }),
		widget.NewToolbarAction(theme.DeleteIcon(), board.ClearPaths),
	)

	onColorTapped := func(name string) {
		s := board.Session()
		if s == nil {
			return
		}
		if err := s.SetColor(name); err != nil {
			log.Warn().Err(err).Str("color", name).Msg("set color")
			return
		}
		// picking a color goes back to the pen
		setMode(state.ModePen)
	}
	colorBox := container.NewHBox()
	for _, name := range paletteNames {
		colorBox.Add(newColorSwatch(name, onColorTapped))
	}

	session := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentSaveIcon(), actions.Save),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), actions.NewRoom),
		widget.NewToolbarAction(theme.LoginIcon(), actions.Join),
		widget.NewToolbarAction(theme.MailForwardIcon(), actions.Share),
	)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tools,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		layout.NewSpacer(),
		session,
	)
}
