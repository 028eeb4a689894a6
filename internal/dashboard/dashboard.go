// Package dashboard assembles the landing page from several independent
// backend reports fetched concurrently.
package dashboard

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/model"
)

// Part names, used as keys in View.Errors and as metric labels.
const (
	PartMetrics   = "metrics"
	PartSales     = "sales"
	PartWarehouse = "warehouse"
	PartStock     = "stock"
)

// DefaultPartTimeout bounds each part when no timeout is configured.
const DefaultPartTimeout = 10 * time.Second

// View is the assembled dashboard. A part that failed or that the user may
// not see is left empty; failures are reported in Errors by part name.
type View struct {
	Metrics      *model.DashboardMetrics    `json:"metrics"`
	Sales        []model.ChartPoint         `json:"sales"`
	Warehouse    []model.WarehouseStatistic `json:"warehouse"`
	StockHistory []model.StockHistory       `json:"stockHistory"`
	Errors       map[string]string          `json:"errors,omitempty"`
}

// Requirements gate each part. Parts not listed are visible to everyone.
var Requirements = map[string]model.Requirement{
	PartSales:     {Permission: "report:view"},
	PartWarehouse: {Permission: "warehouse:view"},
	PartStock:     {Permission: "warehouse:view"},
}

// Loader fetches the dashboard parts.
type Loader struct {
	client    *backend.Client
	cfg       config.DashboardConfig
	warehouse *backend.Resource[model.WarehouseStatistic]
	stock     *backend.Resource[model.StockHistory]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewLoader creates a loader. metrics may be nil.
func NewLoader(client *backend.Client, cfg config.DashboardConfig, metrics *observability.Metrics, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PartTimeout <= 0 {
		cfg.PartTimeout = DefaultPartTimeout
	}
	return &Loader{
		client:    client,
		cfg:       cfg,
		warehouse: backend.NewResource[model.WarehouseStatistic](client, "warehouse_statistics", cfg.WarehousePath),
		stock:     backend.NewResource[model.StockHistory](client, "stock_history", cfg.StockPath),
		metrics:   metrics,
		logger:    logger,
	}
}

// Load fetches every part id may see. The parts run concurrently and a
// failing part never cancels the others. Load only fails when the backend
// rejected the session, so the caller can send the user to sign in.
func (l *Loader) Load(ctx context.Context, id *model.Identity) (View, error) {
	var (
		view View
		mu   sync.Mutex
		g    errgroup.Group
	)
	errs := make(map[string]error)

	run := func(part string, fetch func(ctx context.Context) error) {
		if req, gated := Requirements[part]; gated && !access.Allow(id, req) {
			return
		}
		g.Go(func() error {
			pctx, span := observability.StartSpan(ctx, "dashboard."+part, observability.AttrPart.String(part))
			pctx, cancel := context.WithTimeout(pctx, l.cfg.PartTimeout)
			defer cancel()

			err := fetch(pctx)
			observability.EndSpanWithError(span, err)
			if err != nil {
				mu.Lock()
				errs[part] = err
				mu.Unlock()
			}
			return nil
		})
	}

	run(PartMetrics, func(ctx context.Context) error {
		m, err := get[model.DashboardMetrics](ctx, l.client, l.cfg.MetricsPath)
		if err == nil {
			mu.Lock()
			view.Metrics = &m
			mu.Unlock()
		}
		return err
	})
	run(PartSales, func(ctx context.Context) error {
		points, err := get[[]model.ChartPoint](ctx, l.client, l.cfg.SalesPath)
		if err == nil {
			mu.Lock()
			view.Sales = points
			mu.Unlock()
		}
		return err
	})
	run(PartWarehouse, func(ctx context.Context) error {
		page, err := l.warehouse.List(ctx, model.ListParams{PageIndex: 1, PageSize: 10})
		if err == nil {
			mu.Lock()
			view.Warehouse = page.Items
			mu.Unlock()
		}
		return err
	})
	run(PartStock, func(ctx context.Context) error {
		page, err := l.stock.List(ctx, model.ListParams{PageIndex: 1, PageSize: 10})
		if err == nil {
			mu.Lock()
			view.StockHistory = page.Items
			mu.Unlock()
		}
		return err
	})

	_ = g.Wait()

	for _, err := range errs {
		if model.IsUnauthorized(err) {
			return View{}, err
		}
	}

	logger := observability.RequestLogger(ctx, l.logger)
	for part, err := range errs {
		if view.Errors == nil {
			view.Errors = make(map[string]string, len(errs))
		}
		view.Errors[part] = message(err)
		if l.metrics != nil {
			l.metrics.RecordDashboardPartFailure(part)
		}
		logger.Warn("dashboard part failed", zap.String("part", part), zap.Error(err))
	}
	return view, nil
}

func get[T any](ctx context.Context, c *backend.Client, path string) (T, error) {
	var zero T
	res, err := c.Do(ctx, backend.Request{Method: http.MethodGet, Path: path, Resource: "dashboard"})
	if err != nil {
		return zero, err
	}
	env, err := backend.Decode[T](res)
	if err != nil {
		return zero, err
	}
	return env.Data, nil
}

func message(err error) string {
	if env, ok := model.AsErrorEnvelope(err); ok {
		return env.Message
	}
	return "This section could not be loaded"
}
