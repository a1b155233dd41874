package view

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cafenet/internal/encoding"
	"github.com/MrJamesThe3rd/cafenet/internal/stockimport"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateCharsetSelect importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

type charsetOption struct {
	label   string
	charset string
}

var charsetOptions = []charsetOption{
	{label: "Detect automatically", charset: ""},
	{label: "Windows-1256 (Persian/Arabic Excel)", charset: encoding.Windows1256},
	{label: "UTF-8", charset: encoding.UTF8},
	{label: "Windows-1252 (Western Excel)", charset: encoding.Windows1252},
}

type ImportModel struct {
	CommonModel
	importService *stockimport.Service

	state         importState
	filePicker    filepicker.Model
	charsetCursor int

	result *stockimport.Result
	status string
	err    error
}

func NewImportModel(impSvc *stockimport.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt", ".tsv"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		filePicker:    fp,
	}
}

func (m ImportModel) Title() string { return "Import Stock" }

func (m ImportModel) ShortHelp() string {
	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStateCharsetSelect {
			return m.updateCharsetSelect(msg)
		}

	case importResultMsg:
		m.state = importStateResult
		m.result = msg.result
		m.err = msg.err

		switch {
		case msg.err != nil:
			m.status = fmt.Sprintf("Error: %v", msg.err)
		default:
			m.status = fmt.Sprintf("Added %d products (%s).", len(msg.result.Added), msg.result.Charset)
		}

		return m, nil
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing from %s...", path)

		return m, m.importCmd(path, charsetOptions[m.charsetCursor].charset)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick:
		m.state = importStateCharsetSelect
		return m, nil
	case importStateResult:
		m.state = importStateCharsetSelect
		m.err = nil
		m.result = nil
		m.status = ""

		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateCharsetSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.charsetCursor > 0 {
			m.charsetCursor--
		}
	case tea.KeyDown:
		if m.charsetCursor < len(charsetOptions)-1 {
			m.charsetCursor++
		}
	case tea.KeyEnter:
		m.state = importStateFilePick
		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateCharsetSelect:
		return m.viewCharsetSelect()
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select stock sheet (%s):\n\n%s", charsetOptions[m.charsetCursor].label, m.filePicker.View()),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewCharsetSelect() string {
	var sb strings.Builder

	sb.WriteString("Sheet needs columns for name, quantity, buy price and sell price.\n\nFile encoding:\n\n")

	for i, opt := range charsetOptions {
		cursor := " "
		if i == m.charsetCursor {
			cursor = ">"
		}

		fmt.Fprintf(&sb, "%s %s\n", cursor, opt.label)
	}

	return lipgloss.NewStyle().Padding(2).Render(sb.String())
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	if m.err != nil {
		return style.Render(errorStyle.Render(m.status) + "\n\n(Esc to go back)")
	}

	var sb strings.Builder

	sb.WriteString(okStyle.Render(m.status))

	if m.result != nil && len(m.result.Skipped) > 0 {
		fmt.Fprintf(&sb, "\n\nSkipped %d rows:\n", len(m.result.Skipped))

		for _, s := range m.result.Skipped {
			fmt.Fprintf(&sb, "  line %d: %s\n", s.Line, s.Err)
		}
	}

	sb.WriteString("\n\nUndo removes imported products one at a time.\n(Esc to go back)")

	return style.Render(sb.String())
}

// Messages

type importResultMsg struct {
	result *stockimport.Result
	err    error
}

func (m ImportModel) importCmd(path, charset string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		result, err := m.importService.Import(ctx, f, stockimport.Options{Charset: charset})

		return importResultMsg{result: result, err: err}
	}
}
