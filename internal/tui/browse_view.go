package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/odyssey-erp/odyssey-desk/internal/format"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

const helpLine = "[ ] página · +/- filas · / filtrar · s buscar · c limpiar · r recargar · q salir"

// View renders the screen (bubbletea interface).
func (m BrowseModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.def.Title))
	if m.loading {
		b.WriteString(mutedStyle.Render("  cargando…"))
	}
	b.WriteString("\n")

	if m.focus == focusFilter || m.ctrl.Filter().Search != "" {
		if m.focus == focusFilter {
			b.WriteString(m.filter.View())
		} else {
			b.WriteString(mutedStyle.Render("Filtro: " + m.ctrl.Filter().Search))
		}
		b.WriteString("\n")
	}
	if m.focus == focusLookup {
		b.WriteString(m.lookup.View())
		b.WriteString("\n")
		if dropdown := m.renderDropdown(); dropdown != "" {
			b.WriteString(dropdown)
			b.WriteString("\n")
		}
	}

	v := m.ctrl.View()
	b.WriteString("\n")
	if v.Empty() {
		b.WriteString(mutedStyle.Render("Sin resultados."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
		b.WriteString(renderFooter(v.Pagination, v.Markers))
		b.WriteString("\n")
	}

	if m.toast != nil {
		b.WriteString(toastStyle(m.toast.Kind).Render(m.toast.Message))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(helpLine))
	return b.String()
}

func (m BrowseModel) renderDropdown() string {
	if m.combo == nil || !m.combo.Open() {
		return ""
	}
	results, highlighted := m.combo.Results()
	lines := make([]string, 0, len(results))
	for i, rec := range results {
		line := m.label(rec)
		if i == highlighted {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return dropdownStyle.Render(strings.Join(lines, "\n"))
}

func newPageTable(def views.Definition) table.Model {
	columns, _ := pageGrid(def, nil)
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	s := table.DefaultStyles()
	s.Header = headerStyle.Padding(0, 1)
	s.Selected = selectedStyle
	t.SetStyles(s)
	return t
}

// pageGrid sizes one column per definition column to its widest cell and
// right-aligns money.
func pageGrid(def views.Definition, rows []views.Row) ([]table.Column, []table.Row) {
	columns := make([]table.Column, len(def.Columns))
	for i, col := range def.Columns {
		columns[i] = table.Column{Title: col.Label, Width: lipgloss.Width(col.Label)}
	}
	for _, row := range rows {
		for i, cell := range row.Cells {
			if i < len(columns) {
				columns[i].Width = max(columns[i].Width, lipgloss.Width(cell))
			}
		}
	}
	for i := range columns {
		columns[i].Width = min(columns[i].Width, maxColumnWidth)
	}

	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i := range columns {
			if i >= len(row.Cells) {
				continue
			}
			cell := row.Cells[i]
			if def.Columns[i].Kind == format.KindMoney {
				cell = lipgloss.PlaceHorizontal(columns[i].Width, lipgloss.Right, cell)
			}
			cells[i] = cell
		}
		out = append(out, cells)
	}
	return columns, out
}

func renderFooter(p shared.Pagination, markers []shared.PageMarker) string {
	parts := make([]string, 0, len(markers))
	for _, mk := range markers {
		switch {
		case mk.Ellipsis:
			parts = append(parts, "…")
		case mk.Current:
			parts = append(parts, currentStyle.Render(fmt.Sprintf("[%d]", mk.Number)))
		default:
			parts = append(parts, fmt.Sprint(mk.Number))
		}
	}
	summary := fmt.Sprintf("Mostrando %d–%d de %d · Página %d/%d · Filas por página: %d",
		p.FirstItem(), p.LastItem(), p.Total, p.Page, p.TotalPages, p.PerPage)
	return strings.Join(parts, " ") + "\n" + mutedStyle.Render(summary)
}

func toastStyle(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.KindError:
		return lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	case notify.KindWarning:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case notify.KindSuccess:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	}
	return mutedStyle
}
