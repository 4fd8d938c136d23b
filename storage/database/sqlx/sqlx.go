package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
)

// uniqueViolation is the psql error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// orderBy renders an ORDER BY clause from client-requested ordering. The
// field name is spliced into the query, so only allow-listed columns pass;
// anything else is dropped.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if !allowed[ord.Field] {
			continue
		}
		orderList = append(orderList, ord.String())
	}
	if len(orderList) == 0 {
		return fallback
	}
	return strings.Join(orderList, ", ")
}

func orderable(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, col := range cols {
		m[col] = true
	}
	return m
}

// argList accumulates positional query args; add returns the placeholder
// for the value just added.
type argList []interface{}

func (a *argList) add(v interface{}) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}
