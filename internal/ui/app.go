package ui

import (
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/board"
	"LiveCanvas/internal/state"
)

// AppOptions wires the window to session management in main.
type AppOptions struct {
	Title string
	// Room is opened at start; empty shows the landing state.
	Room string
	// Open starts a session for room. onChange must be passed through to
	// board.Options.OnChange.
	Open func(room string, onChange func()) (*board.Session, error)
	// ShareLink renders the link other participants use to join room.
	ShareLink func(room string) string
}

// RunApp shows the main window and blocks until it is closed. The bound
// session is closed on exit.
func RunApp(opts AppOptions) error {
	if opts.Open == nil {
		return errors.New("ui: no session opener")
	}
	if opts.Title == "" {
		opts.Title = "LiveCanvas"
	}

	a := app.NewWithID("io.livecanvas.board")
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(1024, 768))

	b := NewBoardWidget()
	switchRoom := func(room string) {
		s, err := opts.Open(room, b.Changed)
		if err != nil {
			log.Error().Err(err).Str("room", room).Msg("open session")
			dialog.ShowError(err, w)
			return
		}
		prev := b.Session()
		b.Bind(s)
		if prev != nil {
			go prev.Close()
		}
		go b.followNotices(s)
		w.SetTitle(windowTitle(opts.Title, s.Room()))
	}

	actions := ToolbarActions{
		Save: func() {
			save := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if wc == nil {
					return
				}
				b.SaveToFile(wc)
			}, w)
			save.SetFileName("board.png")
			save.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".pdf"}))
			save.Show()
		},
		NewRoom: func() { switchRoom(state.NewRoom()) },
		Join: func() {
			entry := widget.NewEntry()
			entry.SetPlaceHolder("room")
			entry.Validator = func(v string) error {
				_, err := state.ParseRoom(v)
				return err
			}
			dialog.ShowForm("Join room", "Join", "Cancel",
				[]*widget.FormItem{widget.NewFormItem("Room", entry)},
				func(ok bool) {
					if !ok {
						return
					}
					room, _ := state.ParseRoom(entry.Text)
					switchRoom(room)
				}, w)
		},
		Share: func() {
			s := b.Session()
			if s == nil || s.Room() == "" || opts.ShareLink == nil {
				b.SetStatus("Start or join a room to share it")
				return
			}
			link := opts.ShareLink(s.Room())
			w.Clipboard().SetContent(link)
			b.SetStatus(fmt.Sprintf("Copied %s", link))
		},
	}

	content := container.NewBorder(NewToolbar(b, actions), b.StatusBar(), nil, nil, b)
	w.SetContent(content)
	switchRoom(opts.Room)

	w.ShowAndRun()

	if s := b.Session(); s != nil {
		return s.Close()
	}
	return nil
}

// followNotices mirrors a session's notices on the status line until the
// session closes.
func (b *BoardWidget) followNotices(s *board.Session) {
	for n := range s.Notices() {
		log.Debug().Stringer("notice", n).Msg("session notice")
		if b.Session() == s {
			b.SetStatus(n.String())
		}
	}
}

func windowTitle(title, room string) string {
	if room == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", title, room)
}
