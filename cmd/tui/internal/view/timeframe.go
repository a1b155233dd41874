package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Timeframe is one of the sales periods offered by the picker.
type Timeframe int

const (
	TimeframeToday Timeframe = iota
	TimeframeYesterday
	TimeframeThisWeek
	TimeframeLastWeek
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeAll
	TimeframeCustom
)

var timeframeLabels = map[Timeframe]string{
	TimeframeToday:     "Today",
	TimeframeYesterday: "Yesterday",
	TimeframeThisWeek:  "This Week",
	TimeframeLastWeek:  "Last Week",
	TimeframeThisMonth: "This Month",
	TimeframeLastMonth: "Last Month",
	TimeframeAll:       "All Time",
	TimeframeCustom:    "Custom Range",
}

func (t Timeframe) String() string {
	if label, ok := timeframeLabels[t]; ok {
		return label
	}

	return "Unknown"
}

// weekStart returns the Monday of the week containing day.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// dayRange returns the first and last calendar day covered by tf, relative
// to now. Preset timeframes never reach past today.
func dayRange(tf Timeframe, now time.Time) (time.Time, time.Time) {
	switch tf {
	case TimeframeYesterday:
		y := now.AddDate(0, 0, -1)
		return y, y
	case TimeframeThisWeek:
		return weekStart(now), now
	case TimeframeLastWeek:
		start := weekStart(now).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 6)
	case TimeframeThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	case TimeframeLastMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return first, first.AddDate(0, 1, -1)
	}

	return now, now
}

// normalizeDateRange widens [start, end] to whole local days and returns an
// exclusive end, matching ledger.SaleFilter.
func normalizeDateRange(start, end time.Time) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.Local)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)

	return from, to
}

// TimeframeSelectedMsg is emitted when the user has selected a valid date range.
// End is exclusive. Start and End are zero values when All is true.
type TimeframeSelectedMsg struct {
	Start time.Time
	End   time.Time
	All   bool
}

// TimeframePicker lets the user choose a preset period or type a custom one.
type TimeframePicker struct {
	custom   bool
	selected Timeframe
	initial  Timeframe
	now      func() time.Time

	inputs [2]textinput.Model
	focus  int

	err error
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	p := TimeframePicker{
		selected: initial,
		initial:  initial,
		now:      time.Now,
	}

	for i, prompt := range []string{"From: ", "To:   "} {
		in := textinput.New()
		in.Placeholder = time.DateOnly
		in.CharLimit = len(time.DateOnly)
		in.Width = 12
		in.Prompt = prompt
		p.inputs[i] = in
	}

	return p
}

func (m TimeframePicker) Init() tea.Cmd {
	return nil
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	keyMsg, isKey := msg.(tea.KeyMsg)

	switch {
	case isKey && !m.custom:
		return m.updateSelect(keyMsg)
	case isKey:
		return m.updateCustom(keyMsg)
	case m.custom:
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m TimeframePicker) updateSelect(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > TimeframeToday {
			m.selected--
		}
	case "down", "j":
		if m.selected < TimeframeCustom {
			m.selected++
		}
	case "enter":
		return m.choose()
	}

	return m, nil
}

func (m TimeframePicker) choose() (TimeframePicker, tea.Cmd) {
	switch m.selected {
	case TimeframeCustom:
		m.custom = true
		m.focus = 0
		m.inputs[1].Blur()

		return m, m.inputs[0].Focus()
	case TimeframeAll:
		return m, selected(TimeframeSelectedMsg{All: true})
	}

	start, end := normalizeDateRange(dayRange(m.selected, m.now()))

	return m, selected(TimeframeSelectedMsg{Start: start, End: end})
}

func selected(msg TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (m TimeframePicker) updateCustom(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.inputs[m.focus].Blur()
		m.focus = 1 - m.focus

		return m, m.inputs[m.focus].Focus()

	case "enter":
		start, end, err := m.parseCustom()
		if err != nil {
			m.err = err
			return m, nil
		}

		m.err = nil
		start, end = normalizeDateRange(start, end)

		return m, selected(TimeframeSelectedMsg{Start: start, End: end})

	case "esc":
		m.custom = false
		m.err = nil

		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	return m, cmd
}

// parseCustom reads both inputs. An empty "To" means the same day as "From".
func (m TimeframePicker) parseCustom() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(m.inputs[0].Value()), time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start date (YYYY-MM-DD)")
	}

	raw := strings.TrimSpace(m.inputs[1].Value())
	if raw == "" {
		return start, start, nil
	}

	end, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end date (YYYY-MM-DD)")
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end date is before start date")
	}

	return start, end, nil
}

func (m TimeframePicker) View() string {
	var sb strings.Builder

	if m.custom {
		fmt.Fprintf(&sb, "Custom range:\n\n%s\n%s\n\n(Enter: confirm | Tab: switch | Esc: presets)",
			m.inputs[0].View(), m.inputs[1].View())
	} else {
		sb.WriteString("Sales period:\n\n")

		for tf := TimeframeToday; tf <= TimeframeCustom; tf++ {
			if tf == m.selected {
				sb.WriteString(activeStyle("> "+tf.String()) + "\n")
				continue
			}

			sb.WriteString("  " + tf.String() + "\n")
		}

		sb.WriteString("\n(Enter: select | Esc: back)")
	}

	if m.err != nil {
		sb.WriteString("\n\n" + errorStyle.Render("Error: "+m.err.Error()))
	}

	return sb.String()
}

// IsSelecting reports whether the preset list is showing, as opposed to the
// custom range inputs.
func (m TimeframePicker) IsSelecting() bool {
	return !m.custom
}

func (m *TimeframePicker) Reset() {
	m.custom = false
	m.selected = m.initial
	m.err = nil
	m.focus = 0

	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
}
