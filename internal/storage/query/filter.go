// Package query builds the WHERE clauses shared by the SQL backends.
// Clauses use "?" placeholders; PostgreSQL rebinds them with sqlx.
package query

import (
	"strings"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

// Builder accumulates AND-ed conditions and their arguments.
type Builder struct {
	conds []string
	args  []any
}

// Add appends a condition with its arguments.
func (b *Builder) Add(cond string, args ...any) {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
}

// Where renders the WHERE clause, or an empty string without conditions.
func (b *Builder) Where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// Args returns the accumulated arguments.
func (b *Builder) Args() []any {
	return b.args
}

// Page renders LIMIT/OFFSET. Without a positive limit the result is
// unpaged and offset is ignored.
func (b *Builder) Page(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	b.args = append(b.args, limit)
	if offset <= 0 {
		return " LIMIT ?"
	}
	b.args = append(b.args, offset)
	return " LIMIT ? OFFSET ?"
}

// EscapeLike escapes LIKE wildcards using backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Plots adds the non-spatial plot filter conditions. Columns are
// unqualified land_plots columns.
func Plots(f model.PlotFilter) *Builder {
	b := &Builder{}
	text := func(col, value string) {
		if value == "" {
			return
		}
		if f.Match == model.MatchPrefix {
			b.Add("LOWER("+col+`) LIKE ? ESCAPE '\'`, EscapeLike(strings.ToLower(value))+"%")
			return
		}
		b.Add("LOWER("+col+") = ?", strings.ToLower(value))
	}
	text("district", f.District)
	text("ward", f.Ward)
	text("village", f.Village)

	if f.Status != "" {
		b.Add("status = ?", string(f.Status))
	}
	if f.MinArea != nil {
		b.Add("area_hectares >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		b.Add("area_hectares <= ?", *f.MaxArea)
	}
	return b
}

// Orders adds order filter conditions on the plot_orders alias "o".
func Orders(f model.OrderFilter) *Builder {
	b := &Builder{}
	if f.Status != "" {
		b.Add("o.status = ?", string(f.Status))
	}
	if f.PlotID != nil {
		b.Add("o.plot_id = ?", f.PlotID.String())
	}
	return b
}
