package invoiceapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// DefaultBasePath is where the JSON API is mounted when none is configured.
const DefaultBasePath = "/api"

// SendQueue defers invoice sends to a background job.
type SendQueue interface {
	RequestSend(ctx context.Context, id string, tpl invoice.TemplateName) error
}

// Config configures the shared invoice API controller.
type Config struct {
	Service          invoice.Service
	SendQueue        SendQueue
	BasePath         string
	DefaultTemplate  invoice.TemplateName
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           invoice.Logger
	MaxBodyBytes     int64
}

// Controller exposes invoice API handlers for multiple transports.
type Controller struct {
	service          invoice.Service
	sendQueue        SendQueue
	basePath         string
	defaultTemplate  invoice.TemplateName
	idempotencyStore IdempotencyStore
	idempotencyTTL   time.Duration
	logger           invoice.Logger
	maxBodyBytes     int64
}

// NewController creates a shared invoice API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	tpl, ok := invoice.ParseTemplateName(string(cfg.DefaultTemplate))
	if !ok {
		tpl = invoice.TemplateStandard
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Controller{
		service:          cfg.Service,
		sendQueue:        cfg.SendQueue,
		basePath:         basePath,
		defaultTemplate:  tpl,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   ttl,
		logger:           logger,
		maxBodyBytes:     maxBody,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes invoice endpoints using the shared controller.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil || c.service == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "invoice service not configured", nil))
		return
	}
	if req == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "request is nil", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	pathSuffix := strings.TrimPrefix(req.Path(), c.basePath)
	pathSuffix = strings.Trim(pathSuffix, "/")
	parts := []string{}
	if pathSuffix != "" {
		parts = strings.Split(pathSuffix, "/")
	}
	if len(parts) == 0 {
		writeNotFound(res)
		return
	}

	switch parts[0] {
	case "invoices":
		c.serveInvoices(req, res, parts[1:])
	case "clients":
		c.serveClients(req, res, parts[1:])
	case "overview":
		if len(parts) != 1 {
			writeNotFound(res)
			return
		}
		if !allowMethod(req, res, http.MethodGet) {
			return
		}
		c.handleOverview(req, res)
	case "reports":
		if len(parts) != 2 || parts[1] != "invoices.xlsx" {
			writeNotFound(res)
			return
		}
		if !allowMethod(req, res, http.MethodGet) {
			return
		}
		c.handleRegister(req, res)
	default:
		writeNotFound(res)
	}
}

func (c *Controller) serveInvoices(req Request, res Response, parts []string) {
	switch len(parts) {
	case 0:
		switch req.Method() {
		case http.MethodGet:
			c.handleListInvoices(req, res)
		case http.MethodPost:
			c.handleCreateInvoice(req, res)
		default:
			methodNotAllowed(res, http.MethodGet, http.MethodPost)
		}
	case 1:
		switch req.Method() {
		case http.MethodGet:
			c.handleGetInvoice(req, res, parts[0])
		case http.MethodPut:
			c.handleUpdateInvoice(req, res, parts[0])
		case http.MethodDelete:
			c.handleDeleteInvoice(req, res, parts[0])
		default:
			methodNotAllowed(res, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case 2, 3:
		id, action := parts[0], parts[1]
		template := ""
		if len(parts) == 3 {
			if action != "pdf" && action != "preview" {
				writeNotFound(res)
				return
			}
			template = parts[2]
		}
		switch action {
		case "pdf":
			if allowMethod(req, res, http.MethodGet) {
				c.handlePDF(req, res, id, template)
			}
		case "preview":
			if allowMethod(req, res, http.MethodGet) {
				c.handlePreview(req, res, id, template)
			}
		case "status":
			if allowMethod(req, res, http.MethodPost) {
				c.handleStatus(req, res, id)
			}
		case "duplicate":
			if allowMethod(req, res, http.MethodPost) {
				c.handleDuplicate(req, res, id)
			}
		case "send":
			if allowMethod(req, res, http.MethodPost) {
				c.handleSend(req, res, id)
			}
		default:
			writeNotFound(res)
		}
	default:
		writeNotFound(res)
	}
}

func (c *Controller) serveClients(req Request, res Response, parts []string) {
	switch len(parts) {
	case 0:
		switch req.Method() {
		case http.MethodGet:
			clients, err := c.service.ListClients(req.Context(), invoice.ClientFilter{Query: strings.TrimSpace(req.Query("q"))})
			if err != nil {
				WriteError(res, err)
				return
			}
			writeJSON(res, http.StatusOK, ClientListResponse{Clients: clients, Count: len(clients)})
		case http.MethodPost:
			var payload ClientPayload
			if err := DecodeJSON(req, &payload, c.maxBodyBytes); err != nil {
				WriteError(res, err)
				return
			}
			client, err := c.service.CreateClient(req.Context(), payload.ToClient())
			if err != nil {
				WriteError(res, err)
				return
			}
			writeJSON(res, http.StatusCreated, client)
		default:
			methodNotAllowed(res, http.MethodGet, http.MethodPost)
		}
	case 1:
		id := parts[0]
		switch req.Method() {
		case http.MethodGet:
			client, err := c.service.GetClient(req.Context(), id)
			if err != nil {
				WriteError(res, err)
				return
			}
			writeJSON(res, http.StatusOK, client)
		case http.MethodPut:
			var payload ClientPayload
			if err := DecodeJSON(req, &payload, c.maxBodyBytes); err != nil {
				WriteError(res, err)
				return
			}
			client := payload.ToClient()
			client.ID = id
			updated, err := c.service.UpdateClient(req.Context(), client)
			if err != nil {
				WriteError(res, err)
				return
			}
			writeJSON(res, http.StatusOK, updated)
		case http.MethodDelete:
			if err := c.service.DeleteClient(req.Context(), id); err != nil {
				WriteError(res, err)
				return
			}
			res.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(res, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	default:
		writeNotFound(res)
	}
}

func (c *Controller) handleListInvoices(req Request, res Response) {
	filter, err := parseInvoiceFilter(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	invoices, err := c.service.ListInvoices(req.Context(), filter)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, InvoiceListResponse{Invoices: invoices, Count: len(invoices)})
}

func (c *Controller) handleCreateInvoice(req Request, res Response) {
	var payload InvoicePayload
	if err := DecodeJSON(req, &payload, c.maxBodyBytes); err != nil {
		WriteError(res, err)
		return
	}

	key := strings.TrimSpace(req.Header("Idempotency-Key"))
	if key != "" && c.idempotencyStore != nil {
		signature := buildIdempotencyKey("invoices:create", key)
		if id, ok, err := c.idempotencyStore.Get(req.Context(), signature); err != nil {
			c.logger.Errorf("idempotency store get failed: %v", err)
		} else if ok {
			existing, err := c.service.GetInvoice(req.Context(), id)
			if err == nil {
				res.SetHeader("Idempotent-Replay", "true")
				writeJSON(res, http.StatusOK, existing)
				return
			}
			if invoice.KindFromError(err) != invoice.KindNotFound {
				WriteError(res, err)
				return
			}
		}
		created, err := c.service.CreateInvoice(req.Context(), payload.ToInvoice())
		if err != nil {
			WriteError(res, err)
			return
		}
		if err := c.idempotencyStore.Set(req.Context(), signature, created.ID, c.idempotencyTTL); err != nil {
			c.logger.Errorf("idempotency store set failed: %v", err)
		}
		writeJSON(res, http.StatusCreated, created)
		return
	}

	created, err := c.service.CreateInvoice(req.Context(), payload.ToInvoice())
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusCreated, created)
}

func (c *Controller) handleGetInvoice(req Request, res Response, id string) {
	inv, err := c.service.GetInvoice(req.Context(), id)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, inv)
}

func (c *Controller) handleUpdateInvoice(req Request, res Response, id string) {
	var payload InvoicePayload
	if err := DecodeJSON(req, &payload, c.maxBodyBytes); err != nil {
		WriteError(res, err)
		return
	}
	existing, err := c.service.GetInvoice(req.Context(), id)
	if err != nil {
		WriteError(res, err)
		return
	}
	updated, err := c.service.UpdateInvoice(req.Context(), payload.ApplyTo(existing))
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, updated)
}

func (c *Controller) handleDeleteInvoice(req Request, res Response, id string) {
	if err := c.service.DeleteInvoice(req.Context(), id); err != nil {
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

func (c *Controller) handleStatus(req Request, res Response, id string) {
	var payload StatusPayload
	if err := DecodeJSON(req, &payload, c.maxBodyBytes); err != nil {
		WriteError(res, err)
		return
	}
	status := invoice.Status(strings.ToLower(strings.TrimSpace(string(payload.Status))))
	updated, err := c.service.ChangeStatus(req.Context(), id, status)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, updated)
}

func (c *Controller) handleDuplicate(req Request, res Response, id string) {
	created, err := c.service.DuplicateInvoice(req.Context(), id)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusCreated, created)
}

func (c *Controller) handleSend(req Request, res Response, id string) {
	opts := invoice.RenderOptions{Template: c.resolveTemplate(req, "")}
	if async, _ := strconv.ParseBool(req.Query("async")); async {
		c.queueSend(req, res, id, opts.Template)
		return
	}
	sent, err := c.service.SendInvoice(req.Context(), id, opts)
	if err != nil {
		c.logRenderFailure("send", id, err)
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, sent)
}

func (c *Controller) queueSend(req Request, res Response, id string, tpl invoice.TemplateName) {
	if c.sendQueue == nil {
		WriteError(res, invoice.NewError(invoice.KindNotImpl, "background sending is not configured", nil))
		return
	}
	if _, err := c.service.GetInvoice(req.Context(), id); err != nil {
		WriteError(res, err)
		return
	}
	if err := c.sendQueue.RequestSend(req.Context(), id, tpl); err != nil {
		c.logger.Errorf("invoice %s send enqueue failed: %v", id, err)
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusAccepted, SendQueuedResponse{InvoiceID: id, Template: tpl, Status: "queued"})
}

func (c *Controller) handlePDF(req Request, res Response, id, template string) {
	opts := invoice.RenderOptions{Template: c.resolveTemplate(req, template)}
	doc, err := c.service.RenderPDF(req.Context(), id, opts)
	if err != nil {
		c.logRenderFailure("pdf", id, err)
		WriteError(res, err)
		return
	}
	setDownloadHeaders(res, doc.Invoice.Number, sanitizeFilename(doc.Filename, "invoice.pdf"), doc.ContentType)
	res.SetHeader("Content-Length", strconv.Itoa(len(doc.Data)))
	res.SetHeader("Cache-Control", "no-store")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Data); err != nil {
		c.logger.Errorf("invoice %s pdf write failed: %v", doc.Invoice.Number, err)
	}
}

func (c *Controller) handlePreview(req Request, res Response, id, template string) {
	opts := invoice.RenderOptions{Template: c.resolveTemplate(req, template)}
	doc, err := c.service.Preview(req.Context(), id, opts)
	if err != nil {
		c.logRenderFailure("preview", id, err)
		WriteError(res, err)
		return
	}
	setPreviewHeaders(res, doc.Invoice.Number, sanitizeFilename(doc.Filename, "invoice.html"))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Data); err != nil {
		c.logger.Errorf("invoice %s preview write failed: %v", doc.Invoice.Number, err)
	}
}

func (c *Controller) handleOverview(req Request, res Response) {
	overview, err := c.service.Overview(req.Context())
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, overview)
}

func (c *Controller) handleRegister(req Request, res Response) {
	filter, err := parseInvoiceFilter(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	doc, err := c.service.Register(req.Context(), filter)
	if err != nil {
		WriteError(res, err)
		return
	}
	setDownloadHeaders(res, "", sanitizeFilename(doc.Filename, "invoices.xlsx"), doc.ContentType)
	res.SetHeader("Content-Length", strconv.Itoa(len(doc.Data)))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Data); err != nil {
		c.logger.Errorf("invoice register write failed: %v", err)
	}
}

// resolveTemplate picks the layout from the path, then ?template=, then ?style=.
// Unknown names fall back to the standard layout.
func (c *Controller) resolveTemplate(req Request, fromPath string) invoice.TemplateName {
	requested := ""
	for _, candidate := range []string{fromPath, req.Query("template"), req.Query("style")} {
		if strings.TrimSpace(candidate) != "" {
			requested = candidate
			break
		}
	}
	if requested == "" {
		return c.defaultTemplate
	}
	name, ok := invoice.ParseTemplateName(requested)
	if !ok {
		c.logger.Debugf("unknown invoice template %q, using %s", requested, invoice.TemplateStandard)
		return invoice.TemplateStandard
	}
	return name
}

func (c *Controller) logRenderFailure(action, id string, err error) {
	switch invoice.KindFromError(err) {
	case invoice.KindTemplateRender, invoice.KindConversion, invoice.KindTimeout, invoice.KindInternal:
		c.logger.Errorf("invoice %s %s request failed (%s): %v", id, action, invoice.KindFromError(err), err)
	}
}

func allowMethod(req Request, res Response, method string) bool {
	if req.Method() == method {
		return true
	}
	methodNotAllowed(res, method)
	return false
}

func methodNotAllowed(res Response, methods ...string) {
	res.SetHeader("Allow", strings.Join(methods, ","))
	res.WriteHeader(http.StatusMethodNotAllowed)
}

func writeNotFound(res Response) {
	res.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.SetHeader("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusNotFound)
	_, _ = res.Write([]byte("404 page not found\n"))
}

// WriteError writes err as a JSON error body with the mapped status.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := invoice.AsGoError(err)
	status := statusForError(ge)
	payload := ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	}
	res.DelHeader("Content-Disposition")
	writeJSON(res, status, payload)
}

// StatusForError maps an error to its HTTP status code.
func StatusForError(err error) int {
	return statusForError(invoice.AsGoError(err))
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case "not_implemented":
		return http.StatusNotImplemented
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusRequestTimeout
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryBadInput:
		return http.StatusUnprocessableEntity
	case errorslib.CategoryAuthz:
		return http.StatusForbidden
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryConflict:
		return http.StatusConflict
	case errorslib.CategoryOperation:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(filename, fallback string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = fallback
	}
	return name
}

func setDownloadHeaders(res Response, number, filename, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if number != "" {
		res.SetHeader("X-Invoice-Number", number)
	}
}

func setPreviewHeaders(res Response, number, filename string) {
	res.SetHeader("Content-Type", invoice.ContentTypeHTML)
	res.SetHeader("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	if number != "" {
		res.SetHeader("X-Invoice-Number", number)
	}
}
