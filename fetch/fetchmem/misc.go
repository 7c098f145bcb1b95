package fetchmem

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/lenslib/lens/fetch"
)

// matches reports whether the row satisfies every equality condition.
func matches(row fetch.Record, f fetch.Filter) (bool, error) {
	for k, v := range f {
		c, ok := compare(row[k], v)
		if !ok {
			return false, errors.Errorf("filter %s: cannot compare %T to %T", k, row[k], v)
		}
		if c != 0 {
			return false, nil
		}
	}
	return true, nil
}

// order sorts rows by the ord keys in turn.
func order(rows []fetch.Record, ords []fetch.Ord) (res error) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ords {
			c, ok := compare(rows[i][ord.Key], rows[j][ord.Key])
			if !ok {
				if res == nil {
					res = errors.Errorf("order %s: not comparable %T %T",
						ord.Key, rows[i][ord.Key], rows[j][ord.Key])
				}
				return true
			}
			if c == 0 {
				continue
			}
			if ord.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return res
}

// compare orders two scalar values, nil first. The second result reports
// whether the values are comparable at all.
func compare(a, b interface{}) (int, bool) {
	a, b = scalar(a), scalar(b)
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	if x, ok := a.(decimal.Decimal); ok {
		y, ok := toDec(b)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	}
	if y, ok := b.(decimal.Decimal); ok {
		x, ok := toDec(a)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	}
	if x, ok := a.(time.Time); ok {
		y, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return timeCmp(x, y), true
	}
	if y, ok := b.(time.Time); ok {
		x, ok := toTime(a)
		if !ok {
			return 0, false
		}
		return timeCmp(x, y), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case y:
			return -1, true
		}
		return 1, true
	}
	x, ok := num(a)
	if !ok {
		return 0, false
	}
	y, ok := num(b)
	if !ok {
		return 0, false
	}
	switch {
	case x == y:
		return 0, true
	case x < y:
		return -1, true
	}
	return 1, true
}

// scalar folds typed ids to their canonical text form so stored strings
// and decoded values compare equal.
func scalar(v interface{}) interface{} {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

func timeCmp(x, y time.Time) int {
	switch {
	case x.Equal(y):
		return 0
	case x.Before(y):
		return -1
	}
	return 1
}

// toTime promotes stored text forms so string records compare against
// decoded calendar values.
func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, f := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(f, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func toDec(v interface{}) (decimal.Decimal, bool) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, true
	case string:
		dec, err := decimal.NewFromString(d)
		return dec, err == nil
	}
	if n, ok := num(v); ok {
		return decimal.NewFromFloat(n), true
	}
	return decimal.Decimal{}, false
}

func num(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func eq(a, b interface{}) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

// cursor renders the record id as an opaque position marker.
func cursor(row fetch.Record) string {
	return fmt.Sprintf("%v", row["id"])
}
