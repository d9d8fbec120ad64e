package model

import "time"

// ProjectStatus is the lifecycle state of a building project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

// Project is a building. The ID is derived from the normalized name ("proj-" + slug).
type Project struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Address string        `json:"address"`
	Status  ProjectStatus `json:"status"`
}

// UnitStatus is derived from the free-text process label.
type UnitStatus string

const (
	UnitPending    UnitStatus = "PENDING"
	UnitPreEntrega UnitStatus = "PRE_ENTREGA"
	UnitEntregado  UnitStatus = "ENTREGADO"
)

// ProcesoStatus is the process lifecycle of a scheduled unit.
// The empty value means the backend never set it and is treated as PROGRAMADA.
type ProcesoStatus string

const (
	ProcesoUnset      ProcesoStatus = ""
	ProcesoProgramada ProcesoStatus = "PROGRAMADA"
	ProcesoEnProceso  ProcesoStatus = "EN_PROCESO"
	ProcesoRealizado  ProcesoStatus = "REALIZADO"
	ProcesoCancelada  ProcesoStatus = "CANCELADA"
)

// Unit is a scheduled apartment visit. Contact fields start empty and are
// filled in by the inspector before submission.
type Unit struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Number    string `json:"number"`

	OwnerName  string `json:"ownerName"`
	OwnerRUT   string `json:"ownerRut"`
	OwnerPhone string `json:"ownerPhone"`
	OwnerEmail string `json:"ownerEmail"`

	Status           UnitStatus `json:"status"`
	InspectorID      string     `json:"inspectorId"` // assignee key: email or RUT
	ProcessTypeLabel string     `json:"processTypeLabel"`
	Parking          string     `json:"parking"`
	Storage          string     `json:"storage"`
	ProjectAddress   string     `json:"projectAddress"`
	ActiveState      string     `json:"activeState"`
	Date             string     `json:"date"` // raw, parsed on demand
	Time             string     `json:"time"` // raw H:mm

	ProcesoStatus       ProcesoStatus `json:"procesoStatus"`
	ProcessID           string        `json:"processId"`
	IsHandoverGenerated bool          `json:"isHandoverGenerated"`
	HandoverURL         string        `json:"handoverUrl"`
	HandoverDate        string        `json:"handoverDate"`
}

// NaturalKey is the composite identity the backend uses for a scheduled row
// when no process id has been issued yet.
type NaturalKey struct {
	Assignee string
	Project  string
	Number   string
	Date     string
	Time     string
}

// Key returns the unit's composite natural key.
func (u Unit) Key() NaturalKey {
	return NaturalKey{
		Assignee: u.InspectorID,
		Project:  u.ProjectID,
		Number:   u.Number,
		Date:     u.Date,
		Time:     u.Time,
	}
}

// Same reports whether two snapshots describe the same scheduled row.
// An explicit process id wins; otherwise the natural key is compared.
func (u Unit) Same(other Unit) bool {
	if u.ProcessID != "" && other.ProcessID != "" {
		return u.ProcessID == other.ProcessID
	}
	if u.ID != "" && u.ID == other.ID && u.Date == other.Date && u.Time == other.Time {
		return true
	}
	return u.Key() == other.Key()
}

// EffectiveProceso maps the unset state to PROGRAMADA.
func (u Unit) EffectiveProceso() ProcesoStatus {
	if u.ProcesoStatus == ProcesoUnset {
		return ProcesoProgramada
	}
	return u.ProcesoStatus
}

// Inspector is the logged-in identity.
type Inspector struct {
	RUT   string `json:"rut"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ObservationStatus tracks a recorded defect.
type ObservationStatus string

const (
	ObservationOpen      ObservationStatus = "OPEN"
	ObservationRepairing ObservationStatus = "REPAIRING"
	ObservationClosed    ObservationStatus = "CLOSED"
)

// Observation is a defect recorded in a room during an inspection.
type Observation struct {
	ID          string            `json:"id"`
	UnitID      string            `json:"unitId"`
	RoomID      string            `json:"roomId"`
	Description string            `json:"description"`
	PhotoURL    string            `json:"photoUrl,omitempty"`
	Status      ObservationStatus `json:"status"`
}

// ProcessType is the kind of walkthrough.
type ProcessType string

const (
	PreEntrega   ProcessType = "PRE_ENTREGA"
	EntregaFinal ProcessType = "ENTREGA_FINAL"
)

// Label returns the wire label the backend expects.
func (p ProcessType) Label() string {
	switch p {
	case PreEntrega:
		return "PRE ENTREGA"
	case EntregaFinal:
		return "ENTREGA FINAL"
	default:
		return ""
	}
}

// ParseProcessType accepts either the enum value or the wire label.
func ParseProcessType(s string) (ProcessType, bool) {
	switch s {
	case "PRE_ENTREGA", "PRE ENTREGA", "pre", "pre-entrega":
		return PreEntrega, true
	case "ENTREGA_FINAL", "ENTREGA FINAL", "final", "entrega-final":
		return EntregaFinal, true
	default:
		return "", false
	}
}

// ConnectionStatus describes backend reachability.
type ConnectionStatus string

const (
	ConnectionIdle      ConnectionStatus = "IDLE"
	ConnectionChecking  ConnectionStatus = "CHECKING"
	ConnectionConnected ConnectionStatus = "CONNECTED"
	ConnectionError     ConnectionStatus = "ERROR"
)

// Handover is the local journal entry for a submitted acta.
type Handover struct {
	ID                 string
	UnitID             string
	ProcessID          string
	ProcessType        ProcessType
	Project            string
	Number             string
	SubmittedAt        time.Time
	PDFURL             string
	SignatureChecksums []string // content ids of the archived signature images
	ActaChecksum       string   // content id of the archived PDF, empty until fetched
}
