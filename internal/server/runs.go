package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/specharvest/internal/output"
	"github.com/mohammad-safakhou/specharvest/internal/pipeline"
	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/mohammad-safakhou/specharvest/internal/state"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/mohammad-safakhou/specharvest/tools/web_ingest"
)

// RunsHandler exposes the pipeline stages of a run over HTTP.
type RunsHandler struct {
	Store    state.Store
	Pipeline *pipeline.Pipeline

	mu   sync.Mutex
	busy map[string]string
}

func NewRunsHandler(store state.Store, p *pipeline.Pipeline) *RunsHandler {
	return &RunsHandler{Store: store, Pipeline: p, busy: make(map[string]string)}
}

// Register mounts the run routes. With scoped set, reads need runs:read and
// writes runs:write; authentication itself is applied by the caller.
func (h *RunsHandler) Register(g *echo.Group, scoped bool) {
	read, write := []echo.MiddlewareFunc{}, []echo.MiddlewareFunc{}
	if scoped {
		read = append(read, runtime.RequireScopes(runtime.ScopeRunsRead))
		write = append(write, runtime.RequireScopes(runtime.ScopeRunsWrite))
	}
	g.POST("", h.create, write...)
	g.POST("/:id/stage1", h.stage1, write...)
	g.POST("/:id/stage2", h.stage2, write...)
	g.POST("/:id/stage3", h.stage3, write...)
	g.POST("/:id/run", h.runAll, write...)
	g.DELETE("/:id", h.reset, write...)
	g.GET("/:id/status", h.status, read...)
	g.GET("/:id/report", h.report, read...)
	g.GET("/:id/documents/:category", h.document, read...)
	g.GET("/:id/docs.zip", h.docsZip, read...)
	g.GET("/:id/search", h.search, read...)
}

type stageRequest struct {
	URL   string  `json:"url"`
	Index *string `json:"index,omitempty"` // nil downloads the index from url
}

// acquire marks the run busy with op; false means another stage holds it.
func (h *RunsHandler) acquire(id, op string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy == nil {
		h.busy = make(map[string]string)
	}
	if cur, ok := h.busy[id]; ok {
		return cur, false
	}
	h.busy[id] = op
	return "", true
}

func (h *RunsHandler) release(id string) {
	h.mu.Lock()
	delete(h.busy, id)
	h.mu.Unlock()
}

// withRun loads the run under the per-run lock and calls fn. The stage
// keeps running if the client goes away.
func (h *RunsHandler) withRun(c echo.Context, op string, fn func(ctx context.Context, run *models.RunState) error) error {
	id := c.Param("id")
	if cur, ok := h.acquire(id, op); !ok {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("run %s is busy (%s)", id, cur))
	}
	defer h.release(id)

	ctx := context.WithoutCancel(c.Request().Context())
	run, err := h.Store.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}
	return fn(ctx, run)
}

func storeError(err error) error {
	if errors.Is(err, state.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func stageError(err error) error {
	if errors.Is(err, models.ErrEmptyIndex) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if errors.Is(err, pipeline.ErrBaseRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func (h *RunsHandler) create(c echo.Context) error {
	var req stageRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	run, err := h.Store.Create(c.Request().Context(), strings.TrimSpace(req.URL))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"id": run.ID, "status": run.Status})
}

func (h *RunsHandler) bindStage(c echo.Context) (stageRequest, error) {
	var req stageRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.URL = strings.TrimSpace(req.URL)
	return req, nil
}

func (h *RunsHandler) stage1(c echo.Context) error {
	req, err := h.bindStage(c)
	if err != nil {
		return err
	}
	return h.withRun(c, "stage1", func(ctx context.Context, run *models.RunState) error {
		base := req.URL
		if base == "" {
			base = run.BaseURL
		}
		if base == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "url required")
		}
		var res pipeline.FetchStageResult
		if req.Index != nil {
			res, err = h.Pipeline.IndexAndFetch(ctx, run, base, *req.Index)
		} else {
			res, err = h.Pipeline.RunIndexAndFetchStage(ctx, run, base)
		}
		if err != nil {
			return stageError(err)
		}
		return c.JSON(http.StatusOK, res)
	})
}

func (h *RunsHandler) stage2(c echo.Context) error {
	return h.withRun(c, "stage2", func(ctx context.Context, run *models.RunState) error {
		res, err := h.Pipeline.RunExtractAndConvertStage(ctx, run)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, res)
	})
}

func (h *RunsHandler) stage3(c echo.Context) error {
	return h.withRun(c, "stage3", func(ctx context.Context, run *models.RunState) error {
		res, err := h.Pipeline.RunMergeStage(ctx, run)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, res)
	})
}

func (h *RunsHandler) runAll(c echo.Context) error {
	req, err := h.bindStage(c)
	if err != nil {
		return err
	}
	return h.withRun(c, "run", func(ctx context.Context, run *models.RunState) error {
		base := req.URL
		if base == "" {
			base = run.BaseURL
		}
		var report models.PipelineReport
		switch {
		case req.Index != nil:
			report, err = h.Pipeline.RunWithIndex(ctx, run, base, *req.Index)
		case base == "":
			return echo.NewHTTPError(http.StatusBadRequest, "url required")
		default:
			report, err = h.Pipeline.Run(ctx, run, base)
		}
		if err != nil {
			return stageError(err)
		}
		return c.JSON(http.StatusOK, report)
	})
}

func (h *RunsHandler) reset(c echo.Context) error {
	return h.withRun(c, "delete", func(ctx context.Context, run *models.RunState) error {
		if err := h.Store.Delete(ctx, run.ID); err != nil {
			return storeError(err)
		}
		if err := h.Pipeline.Forget(run.ID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func (h *RunsHandler) status(c echo.Context) error {
	st, err := h.Store.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *RunsHandler) report(c echo.Context) error {
	run, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, run.Report)
}

func (h *RunsHandler) document(c echo.Context) error {
	run, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	cat := models.Category(strings.TrimSuffix(strings.ToLower(c.Param("category")), ".yml"))
	doc, ok := run.Document(cat)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no document for category %q", cat))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", output.DocumentFileName(cat)))
	return c.Blob(http.StatusOK, "application/yaml", doc.YAML)
}

func (h *RunsHandler) docsZip(c echo.Context) error {
	run, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	if run.DocsZip == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no plain documents bundled")
	}
	return c.Attachment(run.DocsZip, "docs.zip")
}

func (h *RunsHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	size := 10
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "size must be a positive integer")
		}
		size = n
	}
	hits, err := h.Pipeline.Search(c.Param("id"), q, size)
	if errors.Is(err, web_ingest.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no search index for run")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}
