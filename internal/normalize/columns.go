package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// Field is a canonical unit attribute that backend columns map onto.
type Field string

const (
	FieldID            Field = "id"
	FieldProject       Field = "project"
	FieldAddress       Field = "address"
	FieldNumber        Field = "number"
	FieldOwnerName     Field = "owner_name"
	FieldOwnerRUT      Field = "owner_rut"
	FieldOwnerPhone    Field = "owner_phone"
	FieldOwnerEmail    Field = "owner_email"
	FieldInspector     Field = "inspector"
	FieldProcessType   Field = "process_type"
	FieldParking       Field = "parking"
	FieldStorage       Field = "storage"
	FieldActiveState   Field = "active_state"
	FieldDate          Field = "date"
	FieldTime          Field = "time"
	FieldProcesoStatus Field = "proceso_status"
	FieldProcessID     Field = "process_id"
	FieldActaStatus    Field = "acta_status"
	FieldActaURL       Field = "acta_url"
	FieldActaDate      Field = "acta_date"
)

// ColumnMap lists, per canonical field, the accepted column names in priority order.
type ColumnMap map[Field][]string

// DefaultColumns is the alias table covering every header revision the
// backend has shipped.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		FieldID:            {"id", "id_unidad", "unit_id"},
		FieldProject:       {"edificio", "proyecto", "project", "building", "nombre_proyecto"},
		FieldAddress:       {"direccion", "dirección", "edificio_direccion", "address"},
		FieldNumber:        {"departamento", "depto", "unidad", "dpto", "number"},
		FieldOwnerName:     {"cliente", "propietario", "nombre_cliente", "owner_name", "owner"},
		FieldOwnerRUT:      {"rut_cliente", "rut_propietario", "owner_rut"},
		FieldOwnerPhone:    {"telefono", "teléfono", "telefono_cliente", "owner_phone", "phone"},
		FieldOwnerEmail:    {"email_cliente", "correo_cliente", "owner_email"},
		FieldInspector:     {"id_inspector", "inspector", "email_inspector", "rut_inspector", "asignado", "inspector_id"},
		FieldProcessType:   {"tipo_proceso", "tipo", "proceso", "process_type"},
		FieldParking:       {"estacionamiento", "parking"},
		FieldStorage:       {"bodega", "storage"},
		FieldActiveState:   {"estado", "activo", "active_state"},
		FieldDate:          {"fecha", "fecha_entrega", "fecha_programada", "date"},
		FieldTime:          {"hora", "hora_entrega", "hora_programada", "time"},
		FieldProcesoStatus: {"estado_proceso", "proceso_status", "procesostatus", "status_proceso"},
		FieldProcessID:     {"process_id", "processid", "id_proceso"},
		FieldActaStatus:    {"acta_status", "estado_acta"},
		FieldActaURL:       {"acta_url", "pdf_url", "handover_url"},
		FieldActaDate:      {"fecha_acta", "handover_date"},
	}
}

// Fields returns every canonical field name, sorted.
func Fields() []Field {
	def := DefaultColumns()
	out := make([]Field, 0, len(def))
	for f := range def {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithAliases returns a copy of c with extra aliases appended per field.
// Extra aliases are tried after the built-in ones.
func (c ColumnMap) WithAliases(extra map[string][]string) (ColumnMap, error) {
	out := make(ColumnMap, len(c))
	for f, aliases := range c {
		out[f] = append([]string(nil), aliases...)
	}
	for name, aliases := range extra {
		f := Field(name)
		if _, ok := out[f]; !ok {
			return nil, fmt.Errorf("unknown column field %q", name)
		}
		out[f] = append(out[f], aliases...)
	}
	return out, nil
}

// HeaderKey folds a column header for comparison: lower case, trimmed,
// inner spaces and hyphens become underscores.
func HeaderKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, h)
}
