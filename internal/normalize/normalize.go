// Package normalize maps loosely-typed scheduling rows into units and projects.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"acta-go/internal/model"
)

// Row is one record as the backend delivered it.
type Row map[string]any

// DefaultProjectName is used when a row names no building.
const DefaultProjectName = "Sin Edificio"

// Result is a normalized snapshot.
type Result struct {
	Units    []model.Unit
	Projects []model.Project
}

// Normalize converts rows into units and projects. It never fails: missing
// or malformed fields become empty strings. One unit is produced per row and
// one project per distinct project id, first seen wins.
func Normalize(rows []Row, columns ColumnMap) Result {
	if columns == nil {
		columns = DefaultColumns()
	}

	res := Result{
		Units:    make([]model.Unit, 0, len(rows)),
		Projects: []model.Project{},
	}
	seen := make(map[string]bool)

	for _, row := range rows {
		v := lookup(row, columns)

		name := v(FieldProject)
		if name == "" {
			name = DefaultProjectName
		}
		address := v(FieldAddress)
		projectID := ProjectID(name)

		if !seen[projectID] {
			seen[projectID] = true
			res.Projects = append(res.Projects, model.Project{
				ID:      projectID,
				Name:    name,
				Address: address,
				Status:  model.ProjectActive,
			})
		}

		number := v(FieldNumber)
		id := v(FieldID)
		if id == "" {
			id = UnitID(projectID, number)
		}

		label := v(FieldProcessType)
		actaURL := v(FieldActaURL)

		res.Units = append(res.Units, model.Unit{
			ID:                  id,
			ProjectID:           projectID,
			Number:              number,
			OwnerName:           v(FieldOwnerName),
			OwnerRUT:            v(FieldOwnerRUT),
			OwnerPhone:          v(FieldOwnerPhone),
			OwnerEmail:          v(FieldOwnerEmail),
			Status:              StatusFromLabel(label),
			InspectorID:         v(FieldInspector),
			ProcessTypeLabel:    label,
			Parking:             v(FieldParking),
			Storage:             v(FieldStorage),
			ProjectAddress:      address,
			ActiveState:         v(FieldActiveState),
			Date:                v(FieldDate),
			Time:                v(FieldTime),
			ProcesoStatus:       Proceso(v(FieldProcesoStatus)),
			ProcessID:           v(FieldProcessID),
			IsHandoverGenerated: actaURL != "" || ActaGenerated(v(FieldActaStatus)),
			HandoverURL:         actaURL,
			HandoverDate:        v(FieldActaDate),
		})
	}
	return res
}

// lookup returns an accessor that resolves a field through the alias table.
// Headers that fold to the same key resolve to the first non-empty value in
// sorted header order.
func lookup(row Row, columns ColumnMap) func(Field) string {
	headers := make([]string, 0, len(row))
	for k := range row {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	folded := make(map[string]any, len(row))
	for _, k := range headers {
		key := HeaderKey(k)
		if prev, dup := folded[key]; dup && Stringify(prev) != "" {
			continue
		}
		folded[key] = row[k]
	}
	return func(f Field) string {
		for _, alias := range columns[f] {
			if val, ok := folded[HeaderKey(alias)]; ok {
				if s := Stringify(val); s != "" {
					return s
				}
			}
		}
		return ""
	}
}

// Stringify renders a JSON-decoded cell as trimmed text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Slug lower-cases s and collapses whitespace runs into single hyphens.
func Slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}

// ProjectID derives the stable project id from its display name.
func ProjectID(name string) string {
	return "proj-" + Slug(name)
}

// UnitID derives a unit id when the backend supplies none.
func UnitID(projectID, number string) string {
	return "unit-" + projectID + "-" + number
}

// StatusFromLabel applies the substring heuristic on the process label.
func StatusFromLabel(label string) model.UnitStatus {
	l := strings.ToUpper(label)
	switch {
	case strings.Contains(l, "PRE"):
		return model.UnitPreEntrega
	case strings.Contains(l, "ENTREGA"):
		return model.UnitEntregado
	default:
		return model.UnitPending
	}
}

// Proceso maps the backend's spellings onto the process lifecycle.
func Proceso(s string) model.ProcesoStatus {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_") {
	case "PROGRAMADA", "PROGRAMADO", "PENDIENTE":
		return model.ProcesoProgramada
	case "EN_PROCESO", "EN_CURSO", "INICIADO", "INICIADA":
		return model.ProcesoEnProceso
	case "REALIZADO", "REALIZADA", "COMPLETADO", "COMPLETADA", "COMPLETED":
		return model.ProcesoRealizado
	case "CANCELADA", "CANCELADO", "CANCELLED":
		return model.ProcesoCancelada
	default:
		return model.ProcesoUnset
	}
}

// ActaGenerated reports whether an acta status cell means the PDF exists.
func ActaGenerated(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GENERADA", "GENERADO", "GENERATED", "OK", "SI", "SÍ", "TRUE", "1":
		return true
	default:
		return false
	}
}

var inactiveStates = map[string]bool{
	"inactivo": true, "inactiva": true, "inactive": true,
	"no": true, "false": true, "0": true,
	"baja": true, "anulado": true, "anulada": true,
}

// IsActive reports whether an active-state cell keeps the unit on the agenda.
// An empty cell counts as active.
func IsActive(state string) bool {
	return !inactiveStates[strings.ToLower(strings.TrimSpace(state))]
}
