package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tpadesk/tpa/internal/platform/auth"
	"github.com/tpadesk/tpa/internal/platform/db"
)

// Parameter types accepted from the query string.
const (
	ParamText = "text"
	ParamInt  = "int"
	ParamDate = "date"
)

// Parameter binds a query-string value to a positional SQL argument; the
// n-th parameter is $n.
type Parameter struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required"`
}

// MeasureDefinition defines a dashboard measure with its SQL query.
type MeasureDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	SQL         string      `json:"-" yaml:"sql"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

var dateRange = []Parameter{{Name: "from", Type: ParamDate}, {Name: "to", Type: ParamDate}}

// PredefinedMeasures are always available. Amounts are cast to float8 so rows
// serialize as plain JSON numbers.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "claims-by-status",
		Name:        "Claims by Current Status",
		Description: "Admissions grouped by the status of their newest claim history row",
		SQL: `WITH current AS (
	SELECT DISTINCT ON (admission_id) admission_id, status, amount
	FROM claims ORDER BY admission_id, id DESC)
SELECT status, COUNT(*) AS admissions, COALESCE(SUM(amount), 0)::float8 AS requested
FROM current GROUP BY status ORDER BY admissions DESC`,
		Parameters: []Parameter{},
	},
	{
		ID:          "sanctioned-vs-requested-by-hospital",
		Name:        "Sanctioned vs Requested by Hospital",
		Description: "Requested estimate and highest sanctioned amount per admission, summed per hospital",
		SQL: `WITH per_admission AS (
	SELECT admission_id, MAX(hospital_id) AS hospital_id, MAX(amount) AS requested, MAX(paid_amount) AS sanctioned
	FROM claims
	WHERE ($1::date IS NULL OR created_at >= $1::date) AND ($2::date IS NULL OR created_at < $2::date + 1)
	GROUP BY admission_id)
SELECT COALESCE(h.name, 'Unknown') AS hospital, COUNT(*) AS admissions,
	COALESCE(SUM(p.requested), 0)::float8 AS requested, COALESCE(SUM(p.sanctioned), 0)::float8 AS sanctioned
FROM per_admission p LEFT JOIN hospitals h ON h.id = p.hospital_id
GROUP BY h.name ORDER BY requested DESC`,
		Parameters: dateRange,
	},
	{
		ID:          "preauth-volume-by-tpa",
		Name:        "Pre-authorization Volume by TPA",
		Description: "Requests and estimated cost per TPA",
		SQL: `SELECT COALESCE(t.name, 'Unassigned') AS tpa, COUNT(*) AS requests,
	COALESCE(SUM(p.total_cost), 0)::float8 AS estimated_cost
FROM preauth_request p LEFT JOIN tpas t ON t.id = p.tpa_id
WHERE ($1::date IS NULL OR p.created_at >= $1::date) AND ($2::date IS NULL OR p.created_at < $2::date + 1)
GROUP BY t.name ORDER BY requests DESC`,
		Parameters: dateRange,
	},
	{
		ID:          "pending-by-hospital",
		Name:        "Open Requests by Hospital",
		Description: "Requests still waiting on the insurer, per hospital",
		SQL: `SELECT COALESCE(h.name, 'Unknown') AS hospital, p.status, COUNT(*) AS requests
FROM preauth_request p LEFT JOIN hospitals h ON h.id = p.hospital_id
WHERE p.status IN ('Pending', 'Pre auth Sent', 'Query Raised', 'Query Answered', 'Enhancement Request')
	AND ($1::bigint IS NULL OR p.hospital_id = $1)
GROUP BY h.name, p.status ORDER BY hospital, p.status`,
		Parameters: []Parameter{{Name: "hospital_id", Type: ParamInt}},
	},
}

// Catalog is the set of measures the API serves.
type Catalog struct {
	measures []MeasureDefinition
	byID     map[string]int
}

// NewCatalog merges the predefined measures with extra ones. IDs must be
// unique across both.
func NewCatalog(extra ...MeasureDefinition) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int)}
	for _, m := range append(append([]MeasureDefinition{}, PredefinedMeasures...), extra...) {
		if err := validateMeasure(m); err != nil {
			return nil, err
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate measure id %q", m.ID)
		}
		c.byID[m.ID] = len(c.measures)
		c.measures = append(c.measures, m)
	}
	return c, nil
}

func validateMeasure(m MeasureDefinition) error {
	if m.ID == "" || m.Name == "" {
		return fmt.Errorf("measure needs id and name")
	}
	head := strings.ToUpper(strings.TrimSpace(m.SQL))
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return fmt.Errorf("measure %q: sql must be a SELECT", m.ID)
	}
	for _, p := range m.Parameters {
		switch p.Type {
		case ParamText, ParamInt, ParamDate:
		default:
			return fmt.Errorf("measure %q: parameter %q has unknown type %q", m.ID, p.Name, p.Type)
		}
	}
	return nil
}

type measureFile struct {
	Measures []MeasureDefinition `yaml:"measures"`
}

// LoadFile reads extra measures from a YAML file of the form
// "measures: [{id, name, description, sql, parameters}]".
func LoadFile(path string) ([]MeasureDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read measures file: %w", err)
	}
	var f measureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse measures file %s: %w", path, err)
	}
	for i := range f.Measures {
		for j := range f.Measures[i].Parameters {
			if f.Measures[i].Parameters[j].Type == "" {
				f.Measures[i].Parameters[j].Type = ParamText
			}
		}
	}
	return f.Measures, nil
}

func (c *Catalog) List() []MeasureDefinition {
	return append([]MeasureDefinition(nil), c.measures...)
}

func (c *Catalog) Find(id string) *MeasureDefinition {
	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	m := c.measures[i]
	return &m
}

// FindMeasure looks up a predefined measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

var errBadParam = errors.New("invalid parameter")

// bindParams converts query-string values into positional arguments. Absent
// optional parameters bind as NULL.
func bindParams(params []Parameter, get func(string) string) ([]interface{}, map[string]string, error) {
	args := make([]interface{}, len(params))
	echoed := map[string]string{}
	for i, p := range params {
		raw := strings.TrimSpace(get(p.Name))
		if raw == "" {
			if p.Required {
				return nil, nil, fmt.Errorf("%w: %s is required", errBadParam, p.Name)
			}
			continue
		}
		echoed[p.Name] = raw
		switch p.Type {
		case ParamInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s must be an integer", errBadParam, p.Name)
			}
			args[i] = n
		case ParamDate:
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadParam, p.Name)
			}
			args[i] = t
		default:
			args[i] = raw
		}
	}
	return args, echoed, nil
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool    *pgxpool.Pool
	catalog *Catalog
}

func NewHandler(pool *pgxpool.Pool, catalog *Catalog) *Handler {
	return &Handler{pool: pool, catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleHospital, auth.RoleTPA))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.List())
}

// EvaluateMeasure runs a measure and returns its rows. CSV rendering is left
// to the dashboard.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := h.catalog.Find(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	args, params, err := bindParams(measure.Parameters, c.QueryParam)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	results, err := h.executeSQL(ctx, measure.SQL, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("measure", measure.ID).Msg("measure evaluation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "measure evaluation failed")
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// executeSQL runs the query in a read-only transaction on the tenant
// connection and returns rows as column-name maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args []interface{}) ([]map[string]interface{}, error) {
	opts := pgx.TxOptions{AccessMode: pgx.ReadOnly}
	var (
		tx  pgx.Tx
		err error
	)
	if conn := db.ConnFromContext(ctx); conn != nil {
		tx, err = conn.BeginTx(ctx, opts)
	} else {
		tx, err = h.pool.BeginTx(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
