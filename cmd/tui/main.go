package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/cafenet/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/config"
	"github.com/MrJamesThe3rd/cafenet/internal/export"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/stockimport"
	"github.com/MrJamesThe3rd/cafenet/internal/storage"
)

type model struct {
	appName       string
	ledger        *ledger.Service
	importService *stockimport.Service
	exportService *export.Service

	currentView View
	width       int
	height      int

	inventoryView view.InventoryModel
	historyView   view.HistoryModel
	importView    view.ImportModel
	exportView    view.ExportModel
}

const logPath = "cafenet-tui.log"

type View int

const (
	ViewMenu      View = 0
	ViewInventory View = 1
	ViewHistory   View = 2
	ViewImport    View = 3
	ViewExport    View = 4
)

func initialModel(cfg *config.Config, svc *ledger.Service) model {
	impSvc := stockimport.NewService(svc)
	expSvc := export.NewService(svc)

	return model{
		appName:       cfg.App.Name,
		ledger:        svc,
		importService: impSvc,
		exportService: expSvc,
		currentView:   ViewMenu,
		inventoryView: view.NewInventoryModel(svc),
		historyView:   view.NewHistoryModel(svc),
		importView:    view.NewImportModel(impSvc),
		exportView:    view.NewExportModel(expSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewInventory
				m.inventoryView = view.NewInventoryModel(m.ledger)

				return m, m.enter(m.inventoryView)
			case "2":
				m.currentView = ViewHistory
				m.historyView = view.NewHistoryModel(m.ledger)

				return m, m.enter(m.historyView)
			case "3":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.importService)

				return m, m.enter(m.importView)
			case "4":
				m.currentView = ViewExport
				m.exportView = view.NewExportModel(m.exportService)

				return m, m.enter(m.exportView)
			}
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewInventory:
		var newModel tea.Model
		newModel, cmd = m.inventoryView.Update(msg)
		m.inventoryView = newModel.(view.InventoryModel)
	case ViewHistory:
		var newModel tea.Model
		newModel, cmd = m.historyView.Update(msg)
		m.historyView = newModel.(view.HistoryModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	}

	return m, cmd
}

// enter initialises a freshly built screen and replays the last known
// window size so lists and tables lay out before the first resize.
func (m model) enter(v view.View) tea.Cmd {
	size := tea.WindowSizeMsg{Width: m.width, Height: m.height}

	return tea.Batch(v.Init(), func() tea.Msg { return size })
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.appName + "\n\n" +
				"1. Inventory\n" +
				"2. Sales History\n" +
				"3. Import Stock\n" +
				"4. Export Sales\n\n" +
				"q. Quit",
		)
	case ViewInventory:
		return m.withHelp(m.inventoryView)
	case ViewHistory:
		return m.withHelp(m.historyView)
	case ViewImport:
		return m.withHelp(m.importView)
	case ViewExport:
		return m.withHelp(m.exportView)
	}

	return "Unknown View"
}

func (m model) withHelp(v view.View) string {
	help := lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(v.ShortHelp())
	return lipgloss.JoinVertical(lipgloss.Left, v.View(), help)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// slog's default handler writes through the log package, so this keeps
	// background logging off the alt screen.
	logFile, err := tea.LogToFile(logPath, "tui")
	if err != nil {
		slog.Error("failed to open log file", "path", logPath, "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	svc := ledger.NewService(store, ledger.Options{
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		HistoryLimit:      cfg.Inventory.HistoryLimit,
	})

	var wg sync.WaitGroup

	if cfg.Backup.Enabled {
		coordinator := backup.NewCoordinator(store, backup.Config{
			Dir:      cfg.Backup.Dir,
			Interval: cfg.Backup.Interval,
			Retain:   cfg.Backup.Retain,
		})

		wg.Go(func() {
			coordinator.Run(ctx)
		})
	}

	p := tea.NewProgram(initialModel(cfg, svc), tea.WithAltScreen())
	_, runErr := p.Run()

	// A backup already in progress finishes before Run returns.
	cancel()
	wg.Wait()

	if runErr != nil {
		slog.Error("failed to run TUI", "error", runErr)
		closeStore()
		os.Exit(1)
	}
}
