package view

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cafenet/internal/export"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

type exportState int

const (
	exportStateTimeframe exportState = iota
	exportStatePath
	exportStateExporting
	exportStateResult
)

type ExportModel struct {
	CommonModel
	exportService *export.Service

	state           exportState
	err             error
	timeframePicker TimeframePicker

	startDate time.Time
	endDate   time.Time
	allTime   bool

	form    *huh.Form
	path    *string
	file    string
	spinner spinner.Model
	summary string
}

func NewExportModel(svc *export.Service) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ExportModel{
		exportService:   svc,
		state:           exportStateTimeframe,
		timeframePicker: NewTimeframePicker(TimeframeToday),
		path:            new("./exports"),
		spinner:         s,
	}
}

func (m ExportModel) Title() string { return "Export Sales" }

func (m ExportModel) ShortHelp() string {
	switch m.state {
	case exportStateResult:
		return "Esc: back to menu | n: new export"
	case exportStateExporting:
		return "Exporting..."
	}
	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return nil
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if tfMsg, ok := msg.(TimeframeSelectedMsg); ok {
		m.startDate = tfMsg.Start
		m.endDate = tfMsg.End
		m.allTime = tfMsg.All
		m.form = m.buildPathForm()
		m.state = exportStatePath
		return m, m.form.Init()
	}

	switch m.state {
	case exportStateTimeframe:
		return m.updateTimeframe(msg)
	case exportStatePath:
		return m.updatePath(msg)
	case exportStateExporting:
		return m.updateExporting(msg)
	case exportStateResult:
		return m.updateResult(msg)
	}

	return m, nil
}

func (m ExportModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)
	return m, cmd
}

func (m ExportModel) updatePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = exportStateTimeframe
			m.timeframePicker.Reset()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = exportStateExporting
	m.err = nil
	return m, tea.Batch(m.spinner.Tick, m.runExportCmd(m.startDate, m.endDate, *m.path))
}

func (m ExportModel) updateExporting(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(exportResultMsg); ok {
		m.state = exportStateResult
		if result.err != nil {
			m.err = result.err
		}
		m.summary = result.body
		m.file = result.file
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m ExportModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc":
		return m, Back
	case "n":
		fresh := NewExportModel(m.exportService)
		fresh.CommonModel = m.CommonModel
		*fresh.path = *m.path

		return fresh, nil
	}

	return m, nil
}

func (m ExportModel) buildPathForm() *huh.Form {
	period := "all sales"
	if !m.allTime {
		period = fmt.Sprintf("sales from %s to %s",
			m.startDate.Format(time.DateOnly), m.endDate.AddDate(0, 0, -1).Format(time.DateOnly))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("path").
				Title("Export directory").
				Description("Writes "+period+" to a new CSV file. The directory is created if needed.").
				Placeholder("./exports").
				Validate(func(s string) error {
					if s == "" {
						return errors.New("directory is required")
					}
					return nil
				}).
				Value(m.path),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m ExportModel) View() string {
	pad := lipgloss.NewStyle().Padding(1)

	switch m.state {
	case exportStateTimeframe:
		return pad.Render(m.timeframePicker.View())
	case exportStatePath:
		return pad.Render(m.form.View())
	case exportStateExporting:
		return pad.Render(m.spinner.View() + " Writing sales export...")
	case exportStateResult:
		if m.err != nil {
			return pad.Render(errorStyle.Render("Export failed: "+m.err.Error()) + "\n\n(Esc: back | n: try again)")
		}

		return pad.Render(lipgloss.JoinVertical(lipgloss.Left,
			okStyle.Bold(true).Render("Export complete"),
			faintStyle.Render(m.file),
			"",
			panelStyle.Render(m.summary),
			"",
			"(Esc: back | n: new export)",
		))
	}

	return ""
}

type exportResultMsg struct {
	file string
	body string
	err  error
}

const exportTimeout = 2 * time.Minute

func (m ExportModel) runExportCmd(start, end time.Time, dir string) tea.Cmd {
	allTime := m.allTime

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		filter := ledger.SaleFilter{}
		if !allTime {
			filter.Since = &start
			filter.Until = &end
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportResultMsg{err: fmt.Errorf("creating output directory: %w", err)}
		}

		path := filepath.Join(dir, fmt.Sprintf("sales_%s.csv", time.Now().Format("20060102_150405")))

		f, err := os.Create(path)
		if err != nil {
			return exportResultMsg{err: fmt.Errorf("creating file: %w", err)}
		}
		defer f.Close()

		if _, err := m.exportService.WriteSalesCSV(ctx, f, filter); err != nil {
			return exportResultMsg{err: err}
		}

		body, err := m.exportService.Summary(ctx, filter)
		if err != nil {
			return exportResultMsg{err: err}
		}

		return exportResultMsg{file: path, body: body}
	}
}
