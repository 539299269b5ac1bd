package tenant

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/smallbiznis/moiledger/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IndexSetVersion changes whenever the declared index set changes.
const IndexSetVersion = 1

// maxIdentifierLength is the postgres identifier limit.
const maxIdentifierLength = 63

type IndexColumn struct {
	Name string
	Desc bool
}

type IndexSpec struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
}

func asc(names ...string) []IndexColumn {
	cols := make([]IndexColumn, 0, len(names))
	for _, name := range names {
		cols = append(cols, IndexColumn{Name: name})
	}
	return cols
}

var indexSet = map[EntityKind][]IndexSpec{
	KindFunctions: {
		{Name: "function_id_uniq", Columns: asc("function_id"), Unique: true},
		{Name: "deleted_created", Columns: asc("is_deleted", "created_at")},
	},
	KindPayers: {
		{Name: "function_payer_name", Columns: asc("function_id", "payer_name")},
		{Name: "payer_phno", Columns: asc("payer_phno")},
		{Name: "function_deleted", Columns: asc("function_id", "is_deleted")},
	},
	KindPayerProfiles: {
		{Name: "name_phno_uniq", Columns: asc("payer_name", "payer_phno"), Unique: true},
	},
	KindEditLogs: {
		{Name: "target_action", Columns: asc("target_id", "action")},
		{Name: "created_by", Columns: asc("created_by")},
		{Name: "created_at_desc", Columns: []IndexColumn{{Name: "created_at", Desc: true}}},
	},
}

// IndexSet returns the declared indexes of kind.
func IndexSet(kind EntityKind) []IndexSpec {
	specs := indexSet[kind]
	out := make([]IndexSpec, len(specs))
	copy(out, specs)
	return out
}

type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
	StatusFailed  Status = "failed"
)

type IndexResult struct {
	Kind       EntityKind `json:"kind"`
	Collection string     `json:"collection"`
	Index      string     `json:"index"`
	Status     Status     `json:"status"`
	Err        error      `json:"-"`
}

// PhysicalIndexName prefixes name with the collection and shortens the result
// with a hash suffix when it would exceed the identifier limit.
func PhysicalIndexName(collection, name string) string {
	full := "idx_" + collection + "_" + name
	if len(full) <= maxIdentifierLength {
		return full
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(full))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return full[:maxIdentifierLength-len(suffix)] + suffix
}

type IndexProvisioner struct {
	resolver *Resolver
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewIndexProvisioner(resolver *Resolver, log *zap.Logger, m *metrics.Metrics) *IndexProvisioner {
	return &IndexProvisioner{
		resolver: resolver,
		log:      log.Named("tenant.indexes"),
		metrics:  m,
	}
}

// EnsureIndexes creates every missing index of the organization's tables.
// Failures are logged and recorded; remaining specs are still attempted. The
// error is reserved for an invalid organization name.
func (p *IndexProvisioner) EnsureIndexes(ctx context.Context, orgName string) ([]IndexResult, error) {
	if !ValidOrgName(orgName) {
		return nil, apperr.Configuration("invalid_org_name", "organization name %q must match [a-z0-9_]+", orgName)
	}

	var results []IndexResult
	for _, kind := range Kinds() {
		h, err := p.resolver.Resolve(orgName, kind)
		if err != nil {
			return nil, err
		}
		for _, spec := range indexSet[kind] {
			result := p.ensure(ctx, h, spec)
			p.metrics.RecordIndexEnsure(ctx, string(kind), string(result.Status))
			results = append(results, result)
		}
	}
	return results, nil
}

func (p *IndexProvisioner) ensure(ctx context.Context, h *Handle, spec IndexSpec) IndexResult {
	return ensureIndex(ctx, h, spec, p.log)
}

// ensureIndex creates spec on the handle's table unless it already exists.
// A failure is logged and carried in the result.
func ensureIndex(ctx context.Context, h *Handle, spec IndexSpec, log *zap.Logger) IndexResult {
	name := PhysicalIndexName(h.Name(), spec.Name)
	result := IndexResult{
		Kind:       h.Kind(),
		Collection: h.Name(),
		Index:      name,
	}
	fail := func(err error) IndexResult {
		result.Status = StatusFailed
		result.Err = err
		log.Warn("ensure index failed",
			zap.String("collection", h.Name()),
			zap.String("index", name),
			zap.Error(err),
		)
		return result
	}

	for _, col := range spec.Columns {
		if !h.Schema().HasColumn(col.Name) {
			return fail(apperr.Configuration("unknown_index_column", "index %s references unknown column %s", spec.Name, col.Name))
		}
	}

	conn := h.db.WithContext(ctx)
	if conn.Migrator().HasIndex(h.Name(), name) {
		result.Status = StatusExists
		return result
	}

	if err := conn.Exec(createIndexSQL(conn, h.Name(), name, spec)).Error; err != nil {
		if db.IsAlreadyExistsErr(err) {
			result.Status = StatusExists
			return result
		}
		return fail(err)
	}

	log.Info("created index", zap.String("collection", h.Name()), zap.String("index", name))
	result.Status = StatusCreated
	return result
}

// createIndexSQL renders the statement with dialect quoting. Table, index and
// column names are validated identifiers.
func createIndexSQL(conn *gorm.DB, table, name string, spec IndexSpec) string {
	quote := conn.Statement.Quote
	cols := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		c := quote(col.Name)
		if col.Desc {
			c += " DESC"
		}
		cols = append(cols, c)
	}

	unique := ""
	if spec.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, quote(name), quote(table), strings.Join(cols, ", "))
}
