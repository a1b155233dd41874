package view

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

type historyState int

const (
	historyStateTimeframe historyState = iota
	historyStateList
	historyStateConfirm
)

// saleItem wraps a sale record to implement list.Item.
type saleItem struct {
	sale *ledger.SaleRecord
}

func (i saleItem) Title() string {
	return fmt.Sprintf("%s  %-24s  %4d x %s",
		FormatTime(i.sale.CreatedAt), i.productName(), i.sale.Quantity, FormatAmount(i.sale.SellPrice))
}

func (i saleItem) Description() string {
	return fmt.Sprintf("#%d  bought at %s  profit %s", i.sale.ID, FormatAmount(i.sale.BuyPrice), FormatAmount(i.sale.Profit))
}

func (i saleItem) FilterValue() string {
	return i.productName()
}

func (i saleItem) productName() string {
	if i.sale.ProductName == "" {
		return "(deleted product)"
	}

	return i.sale.ProductName
}

type HistoryModel struct {
	CommonModel
	svc *ledger.Service

	state           historyState
	timeframePicker TimeframePicker
	list            list.Model
	form            *huh.Form
	confirm         *bool
	target          *ledger.SaleRecord

	filter  ledger.SaleFilter
	sales   []*ledger.SaleRecord
	loading bool
	status  string
}

func NewHistoryModel(svc *ledger.Service) HistoryModel {
	l := list.New([]list.Item{}, saleItemDelegate{}, 0, 0)
	l.Title = "Sales History"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return HistoryModel{
		svc:             svc,
		timeframePicker: NewTimeframePicker(TimeframeToday),
		list:            l,
	}
}

func (m HistoryModel) Title() string { return "Sales History" }

func (m HistoryModel) ShortHelp() string {
	switch m.state {
	case historyStateTimeframe:
		return "Esc: back | Enter: select"
	case historyStateList:
		return "Esc: back | d: delete record | t: timeframe | /: filter"
	case historyStateConfirm:
		return "Esc: cancel"
	}

	return ""
}

func (m HistoryModel) Init() tea.Cmd {
	return nil
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.filter = ledger.SaleFilter{}
		if !msg.All {
			m.filter.Since = new(msg.Start)
			m.filter.Until = new(msg.End)
		}

		m.loading = true
		m.state = historyStateList

		return m, m.loadCmd()

	case loadSalesMsg:
		m.loading = false
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
			return m, nil
		}

		m.sales = msg.sales
		m.refreshListItems()

		if len(msg.sales) == 0 {
			m.status = "No sales found."
		}

		return m, nil

	case deleteSaleMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Error deleting: %v", msg.err))
			return m, nil
		}

		m.status = okStyle.Render(fmt.Sprintf("Deleted sale #%d.", msg.id))

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-10)
		return m, nil
	}

	switch m.state {
	case historyStateTimeframe:
		return m.updateTimeframe(msg)
	case historyStateList:
		return m.updateList(msg)
	case historyStateConfirm:
		return m.updateConfirm(msg)
	}

	return m, nil
}

func (m HistoryModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m HistoryModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "t":
			m.state = historyStateTimeframe
			m.timeframePicker.Reset()

			return m, nil
		case "d":
			return m.startConfirm()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m HistoryModel) startConfirm() (tea.Model, tea.Cmd) {
	selected, ok := m.list.SelectedItem().(saleItem)
	if !ok {
		return m, nil
	}

	m.target = selected.sale
	m.confirm = new(false)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete sale #%d (%s)?", selected.sale.ID, selected.productName())).
				Description("Stock is not changed and this cannot be undone.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(m.confirm),
		),
	).WithWidth(50).WithShowHelp(false)
	m.state = historyStateConfirm

	return m, m.form.Init()
}

func (m HistoryModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = historyStateList
		m.form = nil

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = historyStateList
	m.form = nil

	if !*m.confirm {
		return m, nil
	}

	return m, m.deleteCmd(m.target.ID)
}

func (m HistoryModel) View() string {
	switch m.state {
	case historyStateTimeframe:
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View())

	case historyStateList:
		if m.loading {
			return lipgloss.NewStyle().Padding(2).Render("Loading sales...")
		}

		statusLine := ""
		if m.status != "" {
			statusLine = m.status + "\n"
		}

		return lipgloss.NewStyle().Padding(1).Render(statusLine + m.list.View() + "\n" + m.totalsLine())

	case historyStateConfirm:
		if m.form == nil {
			return ""
		}

		return lipgloss.NewStyle().Padding(1).Render(panelStyle.Render(m.form.View()))
	}

	return ""
}

func (m HistoryModel) totalsLine() string {
	var units, revenue, profit int64

	for _, s := range m.sales {
		units += s.Quantity
		revenue += s.Quantity * s.SellPrice
		profit += s.Profit
	}

	return faintStyle.Render(fmt.Sprintf("%d sales | %s units | revenue %s | profit %s",
		len(m.sales), FormatAmount(units), FormatAmount(revenue), FormatAmount(profit)))
}

func (m *HistoryModel) refreshListItems() {
	items := make([]list.Item, len(m.sales))
	for i, s := range m.sales {
		items[i] = saleItem{sale: s}
	}

	m.list.SetItems(items)
}

// Messages

type loadSalesMsg struct {
	sales []*ledger.SaleRecord
	err   error
}

type deleteSaleMsg struct {
	id  int64
	err error
}

func (m HistoryModel) loadCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		sales, err := m.svc.ListSales(ctx, filter)

		return loadSalesMsg{sales: sales, err: err}
	}
}

func (m HistoryModel) deleteCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		return deleteSaleMsg{id: id, err: m.svc.DeleteSale(ctx, id)}
	}
}

// saleItemDelegate renders items in the list.
type saleItemDelegate struct{}

func (d saleItemDelegate) Height() int                             { return 2 }
func (d saleItemDelegate) Spacing() int                            { return 0 }
func (d saleItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d saleItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(saleItem)
	if !ok {
		return
	}

	title := i.Title()
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "    %s\n", faintStyle.Render(i.Description()))
}
