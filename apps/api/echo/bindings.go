package echoapi

import (
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/chakula/core"
)

const orderingParam = "ordering"

// ordering fields end up in repository queries; anything that does not look
// like a column identifier is dropped here.
var orderingFieldRx = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Ordering binds the `ordering` query param: a comma-separated field list
// where a "-" prefix means descending, e.g. `?ordering=-created_at,name`.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if !orderingFieldRx.MatchString(field) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
