package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

type inventoryState int

const (
	inventoryStateBrowse inventoryState = iota
	inventoryStateSearch
	inventoryStateForm
)

// formKind tells what the open huh form is for.
type formKind int

const (
	formAdd formKind = iota
	formQuickSell
	formConfirmPartial
	formConfirmDelete
	formConfirmPurge
)

// inventoryForm holds form bindings. It lives on the heap so the pointers
// huh keeps stay valid while the model is copied around by bubbletea.
type inventoryForm struct {
	kind    formKind
	product *ledger.ProductRow

	name, quantity, buyPrice, sellPrice string

	sellQty   string
	available int64
	requested int64
	confirm   bool
}

type InventoryModel struct {
	CommonModel
	svc *ledger.Service

	state  inventoryState
	table  table.Model
	search textinput.Model
	form   *huh.Form
	fields *inventoryForm

	filter ledger.ListFilter
	rows   []ledger.ProductRow
	totals *ledger.Totals
	depth  int

	loading bool
	err     error
	status  string
}

func NewInventoryModel(svc *ledger.Service) InventoryModel {
	columns := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Name", Width: 28},
		{Title: "Qty", Width: 7},
		{Title: "Buy", Width: 10},
		{Title: "Sell", Width: 10},
		{Title: "Sold", Width: 7},
		{Title: "% Sold", Width: 7},
		{Title: "Profit", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	si := textinput.New()
	si.Placeholder = "name contains..."
	si.Prompt = "Search: "
	si.Width = 30

	return InventoryModel{
		svc:     svc,
		table:   t,
		search:  si,
		filter:  ledger.ListFilter{View: ledger.ViewAll},
		loading: true,
	}
}

func (m InventoryModel) Title() string { return "Inventory" }

func (m InventoryModel) ShortHelp() string {
	switch m.state {
	case inventoryStateSearch:
		return "Enter: apply | Esc: clear"
	case inventoryStateForm:
		return "Navigate form | Esc: cancel"
	}

	return "Enter: sell 1 | x: sell qty | a: add | d: delete | u: undo | f: view | /: search | p: purge empty | Esc: back"
}

func (m InventoryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m InventoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadInventoryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.rows = msg.rows
		m.totals = msg.totals
		m.depth = msg.depth
		m.refreshTable()

		return m, nil

	case commandMsg:
		return m.handleCommand(msg)

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-12, 5))
		return m, nil
	}

	switch m.state {
	case inventoryStateSearch:
		return m.updateSearch(msg)
	case inventoryStateForm:
		return m.updateForm(msg)
	}

	return m.updateBrowse(msg)
}

func (m InventoryModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "enter", "s":
			if row := m.selected(); row != nil {
				return m, m.sellCmd(row.ID, 1, false)
			}

			return m, nil
		case "x":
			if row := m.selected(); row != nil {
				return m.openForm(&inventoryForm{kind: formQuickSell, product: row, sellQty: "1"})
			}

			return m, nil
		case "a":
			return m.openForm(&inventoryForm{kind: formAdd})
		case "d":
			if row := m.selected(); row != nil {
				return m.openForm(&inventoryForm{kind: formConfirmDelete, product: row})
			}

			return m, nil
		case "p":
			return m.openForm(&inventoryForm{kind: formConfirmPurge})
		case "u":
			return m, m.undoCmd()
		case "f":
			m.filter.View = m.filter.View.Next()
			return m, m.loadCmd()
		case "/":
			m.state = inventoryStateSearch
			m.table.Blur()
			m.search.SetValue(m.filter.Query)

			return m, m.search.Focus()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m InventoryModel) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEsc:
			m.search.SetValue("")
			m.filter.Query = ""
			m.leaveSearch()

			return m, m.loadCmd()
		case tea.KeyEnter:
			m.filter.Query = strings.TrimSpace(m.search.Value())
			m.leaveSearch()

			return m, m.loadCmd()
		}
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)

	return m, cmd
}

func (m *InventoryModel) leaveSearch() {
	m.state = inventoryStateBrowse
	m.search.Blur()
	m.table.Focus()
}

func (m InventoryModel) openForm(f *inventoryForm) (tea.Model, tea.Cmd) {
	m.fields = f
	m.form = buildForm(f)
	m.state = inventoryStateForm
	m.table.Blur()

	return m, m.form.Init()
}

func buildForm(f *inventoryForm) *huh.Form {
	var group *huh.Group

	switch f.kind {
	case formAdd:
		group = huh.NewGroup(
			huh.NewInput().Title("Name").Value(&f.name).Validate(required("name")),
			huh.NewInput().Title("Quantity").Value(&f.quantity).Validate(amount("quantity")),
			huh.NewInput().Title("Buy price").Value(&f.buyPrice).Validate(amount("buy price")),
			huh.NewInput().Title("Sell price").Value(&f.sellPrice).Validate(amount("sell price")),
		)
	case formQuickSell:
		group = huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Sell %s", f.product.Name)).
				Description(fmt.Sprintf("%d in stock", f.product.Quantity)).
				Value(&f.sellQty).
				Validate(func(s string) error {
					n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					if err != nil || n < 1 {
						return errors.New("enter a whole number of at least 1")
					}

					return nil
				}),
		)
	case formConfirmPartial:
		group = huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Only %d of %s in stock.", f.available, f.product.Name)).
				Description(fmt.Sprintf("Sell %d instead of %d?", f.available, f.requested)).
				Affirmative("Sell available").
				Negative("Cancel").
				Value(&f.confirm),
		)
	case formConfirmDelete:
		group = huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", f.product.Name)).
				Description("Its sales stay in the history. Undo brings it back.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&f.confirm),
		)
	case formConfirmPurge:
		group = huh.NewGroup(
			huh.NewConfirm().
				Title("Remove every product with no stock left?").
				Description("This cannot be undone.").
				Affirmative("Purge").
				Negative("Cancel").
				Value(&f.confirm),
		)
	}

	return huh.NewForm(group).WithWidth(45).WithShowHelp(false)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}

		return nil
	}
}

func amount(field string) func(string) error {
	return func(s string) error {
		if _, err := ledger.ParseAmount(s); err != nil {
			return fmt.Errorf("%s must be a whole number", field)
		}

		return nil
	}
}

func (m InventoryModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.closeForm()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.closeForm()
		return m, nil
	case huh.StateCompleted:
	default:
		return m, cmd
	}

	f := m.fields
	m.closeForm()

	switch f.kind {
	case formAdd:
		return m, m.addCmd(f)
	case formQuickSell:
		n, _ := strconv.ParseInt(strings.TrimSpace(f.sellQty), 10, 64)
		return m, m.sellCmd(f.product.ID, n, false)
	case formConfirmPartial:
		if f.confirm {
			return m, m.sellCmd(f.product.ID, f.requested, true)
		}

		m.status = "Sale cancelled."
	case formConfirmDelete:
		if f.confirm {
			return m, m.deleteCmd(f.product.ID)
		}
	case formConfirmPurge:
		if f.confirm {
			return m, m.purgeCmd()
		}
	}

	return m, nil
}

func (m *InventoryModel) closeForm() {
	m.state = inventoryStateBrowse
	m.form = nil
	m.fields = nil
	m.table.Focus()
}

func (m InventoryModel) handleCommand(msg commandMsg) (tea.Model, tea.Cmd) {
	var insufficient *ledger.InsufficientStockError

	switch {
	case errors.As(msg.err, &insufficient):
		row := m.rowByID(insufficient.ProductID)
		if row == nil {
			m.status = errorStyle.Render(msg.err.Error())
			return m, nil
		}

		return m.openForm(&inventoryForm{
			kind:      formConfirmPartial,
			product:   row,
			available: insufficient.Available,
			requested: insufficient.Requested,
		})
	case errors.Is(msg.err, ledger.ErrOutOfStock):
		m.status = errorStyle.Render("Out of stock.")
	case msg.err != nil:
		m.status = errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
	default:
		m.status = okStyle.Render(msg.status)
	}

	return m, m.loadCmd()
}

func (m InventoryModel) selected() *ledger.ProductRow {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return nil
	}

	return &m.rows[idx]
}

func (m InventoryModel) rowByID(id int64) *ledger.ProductRow {
	for i := range m.rows {
		if m.rows[i].ID == id {
			return &m.rows[i]
		}
	}

	return nil
}

func (m InventoryModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading inventory...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	header := fmt.Sprintf("[f] View: %s | [/] Search: %s | Undo: %d",
		activeStyle(viewLabel(m.filter.View)),
		activeStyle(orDash(m.filter.Query)),
		m.depth,
	)

	if m.state == inventoryStateSearch {
		header = m.search.View()
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableBorder.Render(m.table.View()),
		m.reportLine(),
	)

	if m.state == inventoryStateForm && m.form != nil {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panelStyle.Width(48).Render(m.form.View()))
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m InventoryModel) reportLine() string {
	if m.totals == nil {
		return ""
	}

	return faintStyle.Render(fmt.Sprintf(
		"%d products | %s units | stock value %s | sold %s | profit %s",
		m.totals.Products,
		FormatAmount(m.totals.TotalQuantity),
		FormatAmount(m.totals.StockValue),
		FormatAmount(m.totals.TotalSold),
		FormatAmount(m.totals.TotalProfit),
	))
}

func viewLabel(v ledger.View) string {
	switch v {
	case ledger.ViewLowStock:
		return "Low stock"
	case ledger.ViewLeastStock:
		return "Least stock"
	case ledger.ViewBestSeller:
		return "Best sellers"
	case ledger.ViewMostProfitable:
		return "Most profitable"
	}

	return "All"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func (m *InventoryModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		qty := strconv.FormatInt(r.Quantity, 10)
		if r.LowStock {
			qty = "! " + qty
		}

		rows = append(rows, table.Row{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			qty,
			FormatAmount(r.BuyPrice),
			FormatAmount(r.SellPrice),
			strconv.FormatInt(r.SoldQuantity, 10),
			fmt.Sprintf("%d%%", r.PercentSold),
			FormatAmount(r.TotalProfit),
		})
	}

	m.table.SetRows(rows)

	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// Messages

type loadInventoryMsg struct {
	rows   []ledger.ProductRow
	totals *ledger.Totals
	depth  int
	err    error
}

// commandMsg reports the outcome of a ledger command.
type commandMsg struct {
	status string
	err    error
}

func (m InventoryModel) loadCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		rows, err := m.svc.ListProducts(ctx, filter)
		if err != nil {
			return loadInventoryMsg{err: err}
		}

		totals, err := m.svc.Report(ctx)
		if err != nil {
			return loadInventoryMsg{err: err}
		}

		depth, err := m.svc.UndoDepth(ctx)
		if err != nil {
			return loadInventoryMsg{err: err}
		}

		return loadInventoryMsg{rows: rows, totals: totals, depth: depth}
	}
}

func (m InventoryModel) addCmd(f *inventoryForm) tea.Cmd {
	return func() tea.Msg {
		params, err := ledger.ParseAddInput(f.name, f.quantity, f.buyPrice, f.sellPrice)
		if err != nil {
			return commandMsg{err: err}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		p, err := m.svc.AddProduct(ctx, params)
		if err != nil {
			return commandMsg{err: err}
		}

		return commandMsg{status: fmt.Sprintf("Added %s (%d).", p.Name, p.Quantity)}
	}
}

func (m InventoryModel) sellCmd(id, qty int64, allowPartial bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.svc.SellProduct(ctx, ledger.SellParams{ProductID: id, Quantity: qty, AllowPartial: allowPartial})
		if err != nil {
			return commandMsg{err: err}
		}

		return commandMsg{status: fmt.Sprintf("Sold %d x %s, profit %s. %d left.",
			res.Sale.Quantity, res.Product.Name, FormatAmount(res.Sale.Profit), res.Product.Quantity)}
	}
}

func (m InventoryModel) deleteCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		p, err := m.svc.DeleteProduct(ctx, id)
		if err != nil {
			return commandMsg{err: err}
		}

		return commandMsg{status: fmt.Sprintf("Deleted %s.", p.Name)}
	}
}

func (m InventoryModel) purgeCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		removed, err := m.svc.PurgeEmpty(ctx)
		if err != nil {
			return commandMsg{err: err}
		}

		return commandMsg{status: fmt.Sprintf("Removed %d empty products.", len(removed))}
	}
}

func (m InventoryModel) undoCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.svc.UndoLast(ctx)
		if err != nil {
			return commandMsg{err: err}
		}

		return commandMsg{status: describeUndo(res)}
	}
}

func describeUndo(res *ledger.UndoResult) string {
	switch {
	case res.Empty:
		return "Nothing to undo."
	case res.Discarded:
		return "Dropped an unreadable undo entry."
	case res.ProductMissing:
		return fmt.Sprintf("Undid %s; product %d no longer exists.", strings.ToLower(string(res.Entry.Kind)), res.ProductID)
	case res.IDChanged:
		return fmt.Sprintf("Restored product as #%d (its old id was taken).", res.ProductID)
	case res.Approximate:
		return "Undid sale using the latest matching record."
	}

	return fmt.Sprintf("Undid %s.", strings.ToLower(string(res.Entry.Kind)))
}
