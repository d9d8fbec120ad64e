// Package mockapi is an in-memory stand-in for the scheduling script: the
// POST action endpoint, the published CSV exports and the rendered PDFs.
// It backs the end-to-end tests and the mock-backend command.
package mockapi

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"acta-go/internal/model"
	"acta-go/internal/rut"
)

// Sheet column names, matching the default column aliases.
const (
	ColID          = "id"
	ColInspector   = "id_inspector"
	ColProject     = "proyecto"
	ColAddress     = "direccion"
	ColNumber      = "depto"
	ColOwner       = "cliente"
	ColOwnerRUT    = "rut_cliente"
	ColOwnerPhone  = "telefono"
	ColOwnerEmail  = "email_cliente"
	ColProcessType = "tipo_proceso"
	ColParking     = "estacionamiento"
	ColStorage     = "bodega"
	ColActive      = "estado"
	ColDate        = "fecha"
	ColTime        = "hora"
	ColProceso     = "estado_proceso"
	ColProcessID   = "process_id"
	ColActaStatus  = "acta_status"
	ColActaURL     = "pdf_url"
	ColActaDate    = "fecha_acta"
)

const (
	actaGenerated   = "GENERADA"
	unauthorizedMsg = "Usuario no autorizado"
)

// Columns is the units export column order.
var Columns = []string{
	ColID, ColInspector, ColProject, ColAddress, ColNumber, ColOwner, ColOwnerRUT,
	ColOwnerPhone, ColOwnerEmail, ColProcessType, ColParking, ColStorage, ColActive,
	ColDate, ColTime, ColProceso, ColProcessID, ColActaStatus, ColActaURL, ColActaDate,
}

// Server holds the sheet state. Safe for concurrent use.
type Server struct {
	mu sync.Mutex

	apiKey     string
	inspectors []model.Inspector
	rows       []map[string]string
	received   []map[string]any
	failures   []int

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
	engine *gin.Engine
}

type Option func(*Server)

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Server) { s.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New returns an empty server that accepts apiKey.
func New(apiKey string, opts ...Option) *Server {
	s := &Server{
		apiKey: apiKey,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.failureInjection())

	r.POST("/exec", s.exec)
	r.GET("/exec", s.health)
	r.GET("/roster.csv", s.rosterCSV)
	r.GET("/units.csv", s.unitsCSV)
	r.GET("/actas/:file", s.actaPDF)
	return r
}

// Seed replaces the roster and the scheduling rows.
func (s *Server) Seed(inspectors []model.Inspector, rows []map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inspectors = append([]model.Inspector(nil), inspectors...)
	s.rows = make([]map[string]string, len(rows))
	for i, r := range rows {
		s.rows[i] = cloneRow(r)
	}
}

// Rows returns a copy of the scheduling rows.
func (s *Server) Rows() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Received returns every decoded action request body.
func (s *Server) Received() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.received...)
}

// FailNext makes the next n requests answer with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.failures = append(s.failures, status)
	}
}

func (s *Server) failureInjection() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		var status int
		if len(s.failures) > 0 {
			status, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			c.String(status, "injected failure")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Application errors travel as HTTP 200 with ok:false, the way the script host answers.
func reject(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"ok": false, "error": msg})
}

func (s *Server) exec(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		reject(c, "cuerpo ilegible")
		return
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		reject(c, "JSON inválido")
		return
	}

	s.mu.Lock()
	s.received = append(s.received, body)
	s.mu.Unlock()

	if str(body, "apiKey") != s.apiKey {
		reject(c, "API key inválida")
		return
	}

	action := str(body, "action")
	s.logger.Debug("mock action", "action", action)

	switch action {
	case "login":
		s.login(c, body)
	case "getAssignments":
		s.assignments(c, body)
	case "startProcess":
		s.startProcess(c, body)
	case "completeProcess":
		s.completeProcess(c, body)
	case "getActaStatus":
		s.actaStatus(c, body)
	case "health":
		s.health(c)
	default:
		reject(c, fmt.Sprintf("acción desconocida: %q", action))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "up", "time": s.now().Format(time.RFC3339)})
}

func (s *Server) login(c *gin.Context, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(str(body, "email"))
	key := rut.Key(str(body, "rut"))
	for _, who := range s.inspectors {
		if (email != "" && strings.ToLower(who.Email) == email) || (key != "" && rut.Key(who.RUT) == key) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "user": gin.H{
				"rut": who.RUT, "nombre": who.Name, "email": who.Email, "rol": who.Role,
			}})
			return
		}
	}
	reject(c, unauthorizedMsg)
}

func (s *Server) assignments(c *gin.Context, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	who, ok := s.findInspector(str(body, "email"), str(body, "rut"))
	if !ok {
		reject(c, unauthorizedMsg)
		return
	}

	data := []gin.H{}
	for _, row := range s.rows {
		if matchesAssignee(row[ColInspector], who) {
			h := gin.H{}
			for k, v := range row {
				h[k] = v
			}
			data = append(data, h)
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func (s *Server) startProcess(c *gin.Context, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findRow(body)
	if row == nil {
		reject(c, "unidad no encontrada")
		return
	}
	if strings.EqualFold(row[ColActaStatus], actaGenerated) {
		reject(c, "el acta ya fue generada")
		return
	}
	switch strings.ToUpper(row[ColProceso]) {
	case string(model.ProcesoEnProceso):
		if row[ColProcessID] != "" {
			c.JSON(http.StatusOK, gin.H{"ok": true, "processId": row[ColProcessID]})
			return
		}
	case string(model.ProcesoRealizado), string(model.ProcesoCancelada):
		reject(c, "el proceso ya está cerrado")
		return
	}

	row[ColProcessID] = s.newID()
	row[ColProceso] = string(model.ProcesoEnProceso)
	c.JSON(http.StatusOK, gin.H{"ok": true, "processId": row[ColProcessID]})
}

func (s *Server) completeProcess(c *gin.Context, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findRow(body)
	if row == nil {
		reject(c, "unidad no encontrada")
		return
	}
	if strings.ToUpper(row[ColProceso]) != string(model.ProcesoEnProceso) {
		reject(c, "el proceso no está en curso")
		return
	}
	firmas, _ := body["firmas"].(map[string]any)
	if str(firmas, "cliente") == "" || str(firmas, "representante") == "" {
		reject(c, "faltan firmas")
		return
	}

	pid := row[ColProcessID]
	url := fmt.Sprintf("%s/actas/%s.pdf", baseURL(c), pid)
	row[ColProceso] = string(model.ProcesoRealizado)
	row[ColActaStatus] = actaGenerated
	row[ColActaURL] = url
	row[ColActaDate] = s.now().Format("02/01/2006")

	c.JSON(http.StatusOK, gin.H{"ok": true, "pdf_url": url, "message": "Acta generada"})
}

func (s *Server) actaStatus(c *gin.Context, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findRow(body)
	if row == nil {
		reject(c, "unidad no encontrada")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"acta_status": row[ColActaStatus],
		"pdf_url":     row[ColActaURL],
		"fecha_acta":  row[ColActaDate],
	})
}

// actaPDF serves a minimal PDF for any generated acta.
func (s *Server) actaPDF(c *gin.Context) {
	pid := strings.TrimSuffix(c.Param("file"), ".pdf")

	s.mu.Lock()
	var row map[string]string
	for _, r := range s.rows {
		if r[ColProcessID] == pid && strings.EqualFold(r[ColActaStatus], actaGenerated) {
			row = r
			break
		}
	}
	s.mu.Unlock()

	if row == nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	c.Data(http.StatusOK, "application/pdf", RenderPDF(row[ColProject], row[ColNumber], pid))
}

// RenderPDF returns a deterministic placeholder document.
func RenderPDF(project, number, processID string) []byte {
	return fmt.Appendf(nil, "%%PDF-1.4\n%% Acta %s %s %s\n%%%%EOF\n", project, number, processID)
}

func (s *Server) rosterCSV(c *gin.Context) {
	s.mu.Lock()
	records := [][]string{{"RUT", "Nombre Completo", "Email", "Rol"}}
	for _, who := range s.inspectors {
		records = append(records, []string{who.RUT, who.Name, who.Email, who.Role})
	}
	s.mu.Unlock()
	writeCSV(c, records)
}

func (s *Server) unitsCSV(c *gin.Context) {
	s.mu.Lock()
	records := [][]string{Columns}
	for _, row := range s.rows {
		rec := make([]string, len(Columns))
		for i, col := range Columns {
			rec[i] = row[col]
		}
		records = append(records, rec)
	}
	s.mu.Unlock()
	writeCSV(c, records)
}

func writeCSV(c *gin.Context, records [][]string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	if err := w.WriteAll(records); err != nil {
		c.Error(err)
	}
}

// findRow locates a row by process id, then unit id, then the natural key.
// Callers hold s.mu.
func (s *Server) findRow(body map[string]any) map[string]string {
	if pid := str(body, "processId"); pid != "" {
		for _, r := range s.rows {
			if r[ColProcessID] == pid {
				return r
			}
		}
	}
	if id := str(body, "unitId"); id != "" {
		for _, r := range s.rows {
			if r[ColID] != "" && r[ColID] == id {
				return r
			}
		}
	}
	project, number := str(body, "proyecto"), str(body, "depto")
	date, hour := str(body, "fecha"), str(body, "hora")
	for _, r := range s.rows {
		if strings.EqualFold(r[ColProject], project) && r[ColNumber] == number &&
			r[ColDate] == date && r[ColTime] == hour {
			return r
		}
	}
	return nil
}

func (s *Server) findInspector(email, id string) (model.Inspector, bool) {
	email = strings.ToLower(email)
	key := rut.Key(id)
	for _, who := range s.inspectors {
		if (email != "" && strings.ToLower(who.Email) == email) || (key != "" && rut.Key(who.RUT) == key) {
			return who, true
		}
	}
	return model.Inspector{}, false
}

func matchesAssignee(cell string, who model.Inspector) bool {
	cell = strings.ToLower(strings.TrimSpace(cell))
	if cell == "" {
		return false
	}
	if strings.Contains(cell, "@") {
		return cell == strings.ToLower(who.Email)
	}
	return rut.Key(cell) == rut.Key(who.RUT)
}

func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func cloneRow(r map[string]string) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
