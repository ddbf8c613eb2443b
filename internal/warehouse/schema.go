package warehouse

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Column kinds drive row conversion from the JSON artifact.
type ColumnKind int

const (
	KindInt ColumnKind = iota
	KindFloat
	KindText
	KindDate
)

// Column describes one warehouse table column.
type Column struct {
	Name string
	Kind ColumnKind
}

func (c Column) sqlType() string {
	switch c.Kind {
	case KindInt:
		return "BIGINT"
	case KindFloat:
		return "DOUBLE PRECISION"
	case KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// Columns is the fixed 28-column ad-metrics schema, in table order. The
// trailing float columns are the per-conversion-type breakdowns promoted
// by the flattener. All columns are nullable.
var Columns = []Column{
	{"accountId", KindInt},
	{"accountName", KindText},
	{"accountCurrency", KindText},
	{"adId", KindInt},
	{"adName", KindText},
	{"adSetId", KindInt},
	{"adSetName", KindText},
	{"campaignId", KindInt},
	{"campaignName", KindText},
	{"clicks", KindFloat},
	{"impressions", KindFloat},
	{"spend", KindFloat},
	{"cpc", KindFloat},
	{"ctr", KindFloat},
	{"startDate", KindDate},
	{"endDate", KindDate},
	{"bidAmount", KindFloat},
	{"landingURL", KindText},
	{"status", KindText},
	{"Generic", KindFloat},
	{"AppInstall", KindFloat},
	{"Purchase", KindFloat},
	{"GenerateLead", KindFloat},
	{"CompleteRegistration", KindFloat},
	{"AddPaymentInfo", KindFloat},
	{"AddToCart", KindFloat},
	{"AddToWishlist", KindFloat},
	{"Search", KindFloat},
}

// KeyColumns is the composite merge key: at most one target row may
// exist per key. startDate is part of the key and therefore write-once.
var KeyColumns = []string{"accountId", "adId", "adSetId", "campaignId", "startDate"}

// UpdateColumns lists the mutable columns rewritten from staging when a
// key matches: every column outside the composite key.
func UpdateColumns() []string {
	keys := make(map[string]bool, len(KeyColumns))
	for _, k := range KeyColumns {
		keys[k] = true
	}
	var out []string
	for _, c := range Columns {
		if !keys[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnNames returns all column names in table order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
