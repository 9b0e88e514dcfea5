package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partsflow/descgen-backend/internal/config"
	"github.com/partsflow/descgen-backend/internal/generator"
	"github.com/partsflow/descgen-backend/internal/platform/apierr"
	"github.com/partsflow/descgen-backend/internal/platform/groq"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
	"github.com/partsflow/descgen-backend/internal/platform/openrouter"
	"github.com/partsflow/descgen-backend/internal/run"
	"github.com/partsflow/descgen-backend/internal/sheets"
	"github.com/partsflow/descgen-backend/internal/sse"
)

type RunHandler struct {
	log     *logger.Logger
	cfg     *config.Config
	manager *run.Manager
	hub     *sse.Hub
}

func NewRunHandler(log *logger.Logger, cfg *config.Config, manager *run.Manager, hub *sse.Hub) *RunHandler {
	return &RunHandler{
		log:     log.With("handler", "RunHandler"),
		cfg:     cfg,
		manager: manager,
		hub:     hub,
	}
}

func respondError(c *gin.Context, err *apierr.Error) {
	c.JSON(err.Status, gin.H{"error": err.Error()})
}

type startRequest struct {
	SheetURL   string `json:"sheet_url"`
	SheetName  string `json:"sheet_name"`
	ColumnName string `json:"column_name"`
	StartRow   int    `json:"start_row"`
	EndRow     int    `json:"end_row"`
	Prompt     string `json:"prompt"`
	Force      bool   `json:"force"`
	DryRun     bool   `json:"dry_run"`
}

// POST /api/start
func (h *RunHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, "invalid request body", nil))
		return
	}

	if req.StartRow == 0 {
		req.StartRow = 2
	}
	if req.EndRow == 0 {
		req.EndRow = 100
	}
	if req.ColumnName == "" {
		req.ColumnName = h.cfg.Headers.Description
	}

	sheetID := sheets.NormalizeSpreadsheetID(req.SheetURL)
	if sheetID == "" || req.SheetName == "" {
		respondError(c, apierr.New(http.StatusBadRequest, "sheet_url and sheet_name are required", nil))
		return
	}
	if req.StartRow >= req.EndRow {
		respondError(c, apierr.New(http.StatusBadRequest, "start_row must be before end_row", nil))
		return
	}

	session, err := h.manager.Begin()
	if err != nil {
		if errors.Is(err, run.ErrRunActive) {
			respondError(c, apierr.New(http.StatusConflict, "a generation run is already active", nil))
			return
		}
		respondError(c, apierr.New(http.StatusInternalServerError, "", err))
		return
	}

	go h.runWorker(session, req)

	c.JSON(http.StatusOK, gin.H{
		"status":    "started",
		"run_id":    session.ID,
		"start_row": req.StartRow,
		"end_row":   req.EndRow,
	})
}

// runWorker executes one generation run on its own goroutine, publishing
// progress to the SSE hub. It must not use the request context: the run
// outlives the HTTP exchange that started it.
func (h *RunHandler) runWorker(session *run.Session, req startRequest) {
	defer h.manager.Finish(session)
	ctx := context.Background()

	gw, err := sheets.NewClient(ctx, h.log, req.SheetURL, req.SheetName)
	if err != nil {
		h.log.Error("Sheets client init failed", "error", err)
		session.Publish("error", "Ошибка: %v", err)
		return
	}

	primary, err := groq.NewClient(h.log)
	if err != nil {
		h.log.Error("Groq client init failed", "error", err)
		session.Publish("error", "Ошибка: %v", err)
		return
	}

	var secondary generator.SecondaryProvider
	if orClient, err := openrouter.NewClient(h.log); err != nil {
		h.log.Warn("Secondary provider unavailable", "error", err)
	} else {
		secondary = generator.OpenRouterProvider{Client: orClient}
	}

	headerCfg := h.cfg.HeaderConfig()
	headerCfg.Description = req.ColumnName

	header, err := gw.ReadHeader(ctx, headerCfg.HeaderRow)
	if err != nil {
		session.Publish("error", "Ошибка: %v", err)
		return
	}
	cols, err := generator.ResolveColumns(ctx, h.log, header, headerCfg, gw)
	if err != nil {
		session.Publish("error", "Ошибка: %v", err)
		return
	}

	engine := generator.NewEngine(h.log, generator.GroqProvider{Client: primary}, secondary,
		generator.DefaultValidator(), h.cfg.EngineConfig())
	processor := generator.NewProcessor(h.log, gw, engine, cols, req.Force, req.DryRun)

	count, err := processor.Process(ctx, generator.ProcessOptions{
		StartRow: req.StartRow,
		EndRow:   req.EndRow,
		Template: req.Prompt,
		Stopped:  session.Stopped,
		Progress: session.Publish,
	})
	if err != nil {
		session.Publish("error", "Ошибка: %v", err)
		return
	}
	session.Publish("success", "Генерация завершена. Обработано строк: %d", count)
}

// POST /api/stop
func (h *RunHandler) Stop(c *gin.Context) {
	if h.manager.StopCurrent() {
		c.JSON(http.StatusOK, gin.H{"status": "stop_requested"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "no process running"})
}

// GET /api/status
func (h *RunHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": h.manager.Active()})
}

// GET /api/logs
func (h *RunHandler) Logs(c *gin.Context) {
	client := h.hub.AddClient()
	defer h.hub.RemoveClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

type previewRequest struct {
	SheetURL  string `json:"sheet_url"`
	SheetName string `json:"sheet_name"`
}

// POST /api/preview
func (h *RunHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.New(http.StatusBadRequest, "invalid request body", nil))
		return
	}
	if sheets.NormalizeSpreadsheetID(req.SheetURL) == "" {
		respondError(c, apierr.New(http.StatusBadRequest, "sheet_url is required", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	gw, err := sheets.NewClient(ctx, h.log, req.SheetURL, req.SheetName)
	if err != nil {
		respondError(c, apierr.New(http.StatusInternalServerError, "", err))
		return
	}
	rows, err := gw.ReadAllRows(ctx)
	if err != nil {
		respondError(c, apierr.New(http.StatusInternalServerError, "", err))
		return
	}

	var headers []string
	if len(rows) > 0 {
		headers = rows[0]
	}
	preview := [][]string{}
	if len(rows) > 1 {
		end := len(rows)
		if end > 10 {
			end = 10
		}
		preview = rows[1:end]
	}
	total := 0
	if len(rows) > 1 {
		total = len(rows) - 1
	}

	c.JSON(http.StatusOK, gin.H{
		"headers":    headers,
		"rows":       preview,
		"total_rows": total,
	})
}
