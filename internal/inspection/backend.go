package inspection

import (
	"context"

	"acta-go/internal/model"
	"acta-go/internal/normalize"
)

// Backend is the remote system of record for sessions and schedules.
type Backend interface {
	// Login resolves a RUT or email into an inspector identity.
	Login(ctx context.Context, credential string) (model.Inspector, error)

	// Assignments returns the raw scheduling rows for an inspector.
	Assignments(ctx context.Context, who model.Inspector) ([]normalize.Row, error)

	// StartProcess marks a scheduled unit as in progress and returns the
	// process id issued for it.
	StartProcess(ctx context.Context, req StartRequest) (string, error)

	// CompleteProcess submits a finished inspection.
	CompleteProcess(ctx context.Context, sub Submission) (Completion, error)

	// ActaStatus reports whether the certificate for a unit exists.
	ActaStatus(ctx context.Context, unit model.Unit) (ActaStatus, error)

	// Health is a cheap reachability probe.
	Health(ctx context.Context) error
}

// HandoverRecorder keeps a local record of submitted actas.
type HandoverRecorder interface {
	RecordHandover(ctx context.Context, h model.Handover, sig Signatures) (model.Handover, error)
}

// StartRequest identifies the unit by its composite natural key.
type StartRequest struct {
	Assignee    string
	ProjectName string
	Unit        model.Unit
	DeviceID    string
	ProcessType model.ProcessType
}

// Signatures are the two captured signature images as data URLs.
type Signatures struct {
	Client         string `json:"cliente"`
	Representative string `json:"representante"`
}

// Owner is the contact block of a submission.
type Owner struct {
	Name  string `json:"nombre"`
	RUT   string `json:"rut"`
	Phone string `json:"telefono"`
	Email string `json:"email"`
}

// SubmittedObservation is one numbered defect line of the acta.
type SubmittedObservation struct {
	Number      int    `json:"nro"`
	Room        string `json:"recinto"`
	Description string `json:"detalle"`
	Status      string `json:"estado"`
	PhotoURL    string `json:"foto,omitempty"`
}

// Submission is the completeProcess payload.
type Submission struct {
	Type            string                 `json:"tipo"`
	Project         string                 `json:"proyecto"`
	Number          string                 `json:"depto"`
	ActaDate        string                 `json:"fecha_acta"`
	BuildingAddress string                 `json:"edificio_direccion"`
	Comuna          string                 `json:"comuna"`
	Owner           Owner                  `json:"propietario"`
	Observations    []SubmittedObservation `json:"observaciones"`
	Signatures      Signatures             `json:"firmas"`

	// Correlation fields: the composite natural key plus the process id.
	Assignee         string `json:"inspector"`
	ProcessTypeLabel string `json:"tipo_proceso"`
	Date             string `json:"fecha"`
	Time             string `json:"hora"`
	ProcessID        string `json:"processId,omitempty"`
	DeviceID         string `json:"deviceId"`
}

// Completion is the backend's answer to a submission.
type Completion struct {
	PDFURL     string
	Message    string
	HandoverID string
}

// ActaStatus describes the certificate state of a unit.
type ActaStatus struct {
	Generated bool
	URL       string
	Date      string
}
