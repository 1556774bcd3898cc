package handler

import (
	"net/http"
	"strconv"
	"strings"

	"orcamentos_backend/internal/quotes/service"
	"orcamentos_backend/internal/quotes/transport"
	"orcamentos_backend/platform/httpkit"
	"orcamentos_backend/platform/logger"
	"orcamentos_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "id must be a positive integer"
	msgMissingID      = "id query parameter is required"
	msgUnknownAction  = "unknown action"
	msgQuoteCreated   = "quote created"
	msgQuoteUpdated   = "quote updated"
	msgQuoteDeleted   = "quote deleted"
	msgQuoteFound     = "quote found"
	msgQuotesListed   = "quotes listed"
	msgKPIsComputed   = "quote kpis"
	msgActivityListed = "quote activity"

	actionKPIs     = "kpis"
	actionActivity = "activity"
)

// Handler handles HTTP requests for quotes. The resource lives on a single
// path; the id and action query parameters select the operation.
type Handler struct {
	svc *service.Service
	val *validator.Validator
	log *logger.Logger
}

// New creates a new quotes handler
func New(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, val: val, log: log}
}

// RegisterRoutes registers the quote routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.POST("", h.Create)
	rg.PUT("", h.Update)
	rg.DELETE("", h.Delete)
}

// Get dispatches GET requests to list, detail, KPI or activity views.
func (h *Handler) Get(c *gin.Context) {
	switch action := strings.TrimSpace(c.Query("action")); action {
	case "":
	case actionKPIs:
		h.KPIs(c)
		return
	case actionActivity:
		h.Activity(c)
		return
	default:
		httpkit.Error(c, http.StatusBadRequest, msgUnknownAction, nil)
		return
	}
	if _, ok := c.GetQuery("id"); ok {
		h.GetByID(c)
		return
	}
	h.List(c)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, validator.Describe(err), nil)
		return
	}

	companyID := identity.CompanyID()
	result, err := h.svc.List(c.Request.Context(), &companyID, req)
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgQuotesListed, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := mustGetQuoteID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), identity.CompanyID(), id)
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgQuoteFound, result)
}

func (h *Handler) KPIs(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.KPIs(c.Request.Context(), identity.CompanyID())
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgKPIsComputed, result)
}

func (h *Handler) Activity(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := mustGetQuoteID(c)
	if !ok {
		return
	}

	result, err := h.svc.Activity(c.Request.Context(), identity.CompanyID(), id)
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgActivityListed, result)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	req, ok := h.bindQuote(c)
	if !ok {
		return
	}

	actor := service.Actor{
		CompanyID: identity.CompanyID(),
		UserID:    identity.UserID(),
		RequestID: strings.TrimSpace(c.GetHeader(httpkit.HeaderRequestID)),
	}
	result, err := h.svc.Create(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.Created(c, msgQuoteCreated, result)
}

func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := mustGetQuoteID(c)
	if !ok {
		return
	}

	req, ok := h.bindQuote(c)
	if !ok {
		return
	}

	actor := service.Actor{CompanyID: identity.CompanyID(), UserID: identity.UserID()}
	result, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgQuoteUpdated, result)
}

func (h *Handler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := mustGetQuoteID(c)
	if !ok {
		return
	}

	actor := service.Actor{CompanyID: identity.CompanyID(), UserID: identity.UserID()}
	if err := h.svc.Delete(c.Request.Context(), actor, id); httpkit.HandleError(c, h.log, err) {
		return
	}

	httpkit.OK(c, msgQuoteDeleted, nil)
}

func (h *Handler) bindQuote(c *gin.Context) (transport.QuoteRequest, bool) {
	var req transport.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, validator.Describe(err), nil)
		return req, false
	}
	return req, true
}

func mustGetQuoteID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("id"))
	if raw == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingID, nil)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return 0, false
	}
	return id, true
}
