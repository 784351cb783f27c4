package database

import (
	"database/sql/driver"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/trezcool/hudhuria/core"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

func itoa(n int) string { return strconv.Itoa(n) }

func pqStringArray(vals []string) driver.Valuer {
	return pq.Array(vals)
}

// orderableColumns whitelists user-supplied ordering fields.
var orderableColumns = map[string]struct{}{
	"name":       {},
	"email":      {},
	"role":       {},
	"created_at": {},
}

func orderByClause(orderings []core.DBOrdering) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := orderableColumns[ord.Field]; ok {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return ` ORDER BY created_at DESC`
	}
	return ` ORDER BY ` + strings.Join(clauses, ", ")
}
