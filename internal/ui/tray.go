package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
	"github.com/heimdex/heimdex-clipper/internal/batch"
)

//go:embed icon.png
var iconBytes []byte

// Progress is the orchestrator as seen by the tray.
type Progress interface {
	Subscribe(fn func(batch.Snapshot))
	Snapshot() batch.Snapshot
}

type Tray struct {
	progress Progress
	logger   *slog.Logger

	statusItem  *systray.MenuItem
	summaryItem *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onOpenDir func()
	onQuit    func()
}

type TrayConfig struct {
	Progress  Progress
	Logger    *slog.Logger
	OnOpenDir func()
	OnQuit    func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		progress:  cfg.Progress,
		logger:    cfg.Logger,
		onOpenDir: cfg.OnOpenDir,
		onQuit:    cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Clipper")

	t.statusItem = systray.AddMenuItem(StatusLine(batch.Snapshot{}), "Current batch")
	t.statusItem.Disable()

	t.summaryItem = systray.AddMenuItem("No batch run yet", "Last batch result")
	t.summaryItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Outputs Folder", "Show produced clips")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Clipper")

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()

	if t.progress != nil {
		t.apply(t.progress.Snapshot())
		t.progress.Subscribe(t.apply)
	}

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				if t.onOpenDir != nil {
					t.onOpenDir()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) apply(s batch.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.statusItem.SetTitle(StatusLine(s))
	if s.Summary != nil {
		t.summaryItem.SetTitle(SummaryLine(s.Summary))
	}
}

// StatusLine is the tray's batch status text.
func StatusLine(s batch.Snapshot) string {
	if !s.Running {
		return "Batch: idle"
	}
	return fmt.Sprintf("Batch: %d%%", s.Progress)
}

// SummaryLine describes a finished batch.
func SummaryLine(sum *batch.Summary) string {
	switch {
	case sum.Fatal != "":
		return "Last batch aborted: " + sum.Fatal
	case len(sum.Failed) == 0:
		return fmt.Sprintf("Last batch: %d done", sum.Successful)
	default:
		return fmt.Sprintf("Last batch: %d done, %d failed", sum.Successful, len(sum.Failed))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
