// Package inspection holds one inspector's session: identity, the agenda of
// scheduled units, the inspection in progress and the process transitions
// that are reconciled with the backend.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"acta-go/internal/calendar"
	"acta-go/internal/fault"
	"acta-go/internal/model"
	"acta-go/internal/normalize"
	"acta-go/internal/rut"
)

// DefaultUpcomingDays is the agenda look-ahead window.
const DefaultUpcomingDays = 14

// DefaultComuna is sent when the unit data carries no comuna.
const DefaultComuna = "Santiago"

// Config holds the store's static settings.
type Config struct {
	DeviceID     string
	Comuna       string
	UpcomingDays int
	Resolver     *calendar.Resolver
	Columns      normalize.ColumnMap
}

// UnitPatch is a shallow update of the selected unit's contact fields.
// Nil fields are left untouched.
type UnitPatch struct {
	OwnerName  *string
	OwnerRUT   *string
	OwnerPhone *string
	OwnerEmail *string
}

// ObservationDraft is an observation before it gets an id.
type ObservationDraft struct {
	UnitID      string
	RoomID      string
	Description string
	PhotoURL    string
	Status      model.ObservationStatus
}

// Store is the single source of truth for a session. Network calls are made
// without holding the lock; state is written under it afterwards.
type Store struct {
	cfg      Config
	backend  Backend
	clock    Clock
	ids      IDGenerator
	logger   Logger
	recorder HandoverRecorder

	mu           sync.Mutex
	session      *model.Inspector
	units        []model.Unit
	projects     []model.Project
	selected     *model.Unit
	processType  model.ProcessType
	observations []model.Observation
	submitted    []model.Unit
	loading      bool
	dataError    string
	connection   model.ConnectionStatus
	generation   uint64
}

// New creates a store with an empty session.
func New(cfg Config, backend Backend, deps Deps) *Store {
	deps = deps.withDefaults()
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = DefaultUpcomingDays
	}
	if cfg.Comuna == "" {
		cfg.Comuna = DefaultComuna
	}
	if cfg.Resolver == nil {
		cfg.Resolver, _ = calendar.NewResolver(nil, nil)
	}
	if cfg.Columns == nil {
		cfg.Columns = normalize.DefaultColumns()
	}

	return &Store{
		cfg:        cfg,
		backend:    backend,
		clock:      deps.Clock,
		ids:        deps.IDs,
		logger:     deps.Logger,
		recorder:   deps.Recorder,
		connection: model.ConnectionIdle,
	}
}

// Dispose drops all session state. The store can be reused with a new Login.
func (s *Store) Dispose() {
	s.Logout()
}

// Session returns the logged-in inspector, if any.
func (s *Store) Session() (model.Inspector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.Inspector{}, false
	}
	return *s.session, true
}

// Units returns a copy of the last agenda snapshot, unfiltered.
func (s *Store) Units() []model.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Unit(nil), s.units...)
}

// Projects returns a copy of the projects seen in the last snapshot.
func (s *Store) Projects() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Project(nil), s.projects...)
}

// SelectedUnit returns the unit under inspection.
func (s *Store) SelectedUnit() (model.Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return model.Unit{}, false
	}
	return *s.selected, true
}

// ProcessType returns the process type chosen for the selection.
func (s *Store) ProcessType() model.ProcessType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processType
}

// Observations returns a copy of the observations recorded so far.
func (s *Store) Observations() []model.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Observation(nil), s.observations...)
}

// IsLoadingData reports whether an agenda fetch is in flight.
func (s *Store) IsLoadingData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// DataError is the last agenda fetch failure, empty after a successful fetch.
func (s *Store) DataError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataError
}

// Connection returns the last known backend connection status.
func (s *Store) Connection() model.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection
}

// Resolver exposes the date resolver used for agenda views.
func (s *Store) Resolver() *calendar.Resolver {
	return s.cfg.Resolver
}

// Login validates credential locally, asks the backend for the identity and
// then loads the agenda. A failed agenda load does not undo the login; it is
// reported through DataError.
func (s *Store) Login(ctx context.Context, credential string) error {
	cred := strings.TrimSpace(credential)
	byEmail := strings.Contains(cred, "@")

	switch {
	case cred == "":
		return fault.New(fault.Validation, "ingrese su RUT o email")
	case byEmail && !isEmail(cred):
		return fault.New(fault.Validation, "email inválido")
	case byEmail:
		cred = strings.ToLower(cred)
	case !rut.Validate(cred):
		return fault.New(fault.Validation, "RUT inválido")
	default:
		cred = rut.Format(cred)
	}

	who, err := s.backend.Login(ctx, cred)
	if err != nil {
		s.logger.Warn("login rejected", "error", err)
		return err
	}
	who.Email = strings.ToLower(strings.TrimSpace(who.Email))
	if who.Email == "" && who.RUT == "" {
		return fault.New(fault.Logic, "respuesta de login incompleta")
	}
	if who.RUT == "" && !byEmail {
		who.RUT = cred
	}

	s.mu.Lock()
	s.generation++
	s.session = &who
	s.units, s.projects, s.submitted = nil, nil, nil
	s.selected, s.processType, s.observations = nil, "", nil
	s.loading, s.dataError = false, ""
	s.mu.Unlock()

	s.logger.Info("inspector logged in", "email", who.Email, "rut", who.RUT)

	if err := s.FetchData(ctx); err != nil {
		s.logger.Warn("agenda fetch after login failed", "error", err)
	}
	return nil
}

// Logout resets everything, identity and connection status included.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.session = nil
	s.units, s.projects, s.submitted = nil, nil, nil
	s.selected, s.processType, s.observations = nil, "", nil
	s.loading, s.dataError = false, ""
	s.connection = model.ConnectionIdle
}

// ClearSession abandons the inspection in progress but keeps the identity.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected, s.processType, s.observations = nil, "", nil
}

// FetchData replaces units and projects with a fresh snapshot from the
// backend. Results that arrive after the session changed are discarded.
func (s *Store) FetchData(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return ErrNoSession
	}
	gen := s.generation
	who := *s.session
	s.loading = true
	s.dataError = ""
	s.mu.Unlock()

	rows, err := s.backend.Assignments(ctx, who)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return ErrSessionChanged
	}
	s.loading = false

	if err != nil {
		s.dataError = fault.Message(err)
		if isConnectionFailure(err) {
			s.connection = model.ConnectionError
		}
		return fmt.Errorf("fetching assignments: %w", err)
	}

	res := normalize.Normalize(rows, s.cfg.Columns)
	s.units = res.Units
	s.projects = res.Projects
	for i := range s.units {
		if s.submittedLocked(s.units[i]) && procesoRank(s.units[i].EffectiveProceso()) < procesoRank(model.ProcesoRealizado) {
			s.units[i].ProcesoStatus = model.ProcesoRealizado
		}
	}
	s.resyncSelectedLocked()
	s.connection = model.ConnectionConnected
	s.logger.Debug("agenda loaded", "units", len(res.Units), "projects", len(res.Projects))
	return nil
}

// ScheduledToday returns today's active units assigned to the session,
// ordered by time with untimed units last.
func (s *Store) ScheduledToday() []model.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	r := s.cfg.Resolver
	var out []model.Unit
	for _, u := range s.units {
		if !s.visible(u) {
			continue
		}
		d, ok := r.ParseDate(u.Date)
		if !ok || !r.SameDay(d, now) {
			continue
		}
		out = append(out, u)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return clockKey(out[i].Time) < clockKey(out[j].Time)
	})
	return out
}

// Upcoming returns active assigned units dated from the start of today to
// the end of the day windowDays ahead, ordered by date and time.
// A non-positive window selects the configured default.
func (s *Store) Upcoming(windowDays int) []model.Unit {
	if windowDays <= 0 {
		windowDays = s.cfg.UpcomingDays
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	r := s.cfg.Resolver
	type dated struct {
		unit model.Unit
		day  time.Time
	}
	var list []dated
	for _, u := range s.units {
		if !s.visible(u) {
			continue
		}
		d, ok := r.ParseDate(u.Date)
		if !ok || !r.WithinNextDays(d, now, windowDays) {
			continue
		}
		list = append(list, dated{unit: u, day: r.StartOfDay(d)})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].day.Equal(list[j].day) {
			return list[i].day.Before(list[j].day)
		}
		return clockKey(list[i].unit.Time) < clockKey(list[j].unit.Time)
	})

	out := make([]model.Unit, len(list))
	for i, d := range list {
		out[i] = d.unit
	}
	return out
}

// ProjectsFromAgenda returns the distinct projects of today's agenda.
func (s *Store) ProjectsFromAgenda() []model.Project {
	today := s.ScheduledToday()

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]model.Project, len(s.projects))
	for _, p := range s.projects {
		byID[p.ID] = p
	}
	seen := make(map[string]bool)
	var out []model.Project
	for _, u := range today {
		if seen[u.ProjectID] {
			continue
		}
		seen[u.ProjectID] = true
		if p, ok := byID[u.ProjectID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// visible applies the assignee and active-state filters. Caller holds mu.
func (s *Store) visible(u model.Unit) bool {
	return s.session != nil && assignedTo(u, *s.session) && normalize.IsActive(u.ActiveState)
}

// assignedTo matches the unit's assignee key against the identity by exact
// email or by normalized RUT.
func assignedTo(u model.Unit, who model.Inspector) bool {
	key := strings.ToLower(strings.TrimSpace(u.InspectorID))
	if key == "" {
		return false
	}
	if who.Email != "" && key == strings.ToLower(who.Email) {
		return true
	}
	if strings.Contains(key, "@") {
		return false
	}
	mine := rut.Key(who.RUT)
	return mine != "" && rut.Key(key) == mine
}

// clockKey orders valid times by minutes and puts missing ones last.
func clockKey(s string) int {
	if m, ok := calendar.ParseClock(s); ok {
		return m
	}
	return 24 * 60
}

// SetSelectedUnit makes a copy of u the selection. The copy takes the
// process state of the matching agenda unit; nil clears it.
func (s *Store) SetSelectedUnit(u *model.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.selected = nil
		return
	}
	cp := *u
	s.selected = &cp
	s.resyncSelectedLocked()
}

// UpdateSelectedUnit merges p onto the selection. It reports false when
// nothing is selected.
func (s *Store) UpdateSelectedUnit(p UnitPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return false
	}
	if p.OwnerName != nil {
		s.selected.OwnerName = *p.OwnerName
	}
	if p.OwnerRUT != nil {
		s.selected.OwnerRUT = *p.OwnerRUT
	}
	if p.OwnerPhone != nil {
		s.selected.OwnerPhone = *p.OwnerPhone
	}
	if p.OwnerEmail != nil {
		s.selected.OwnerEmail = *p.OwnerEmail
	}
	return true
}

// SetProcessType sets the process type used by StartProcess and submit.
func (s *Store) SetProcessType(pt model.ProcessType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processType = pt
}

// AddObservation appends an observation with a fresh local id. The unit
// defaults to the selection and the status to OPEN.
func (s *Store) AddObservation(d ObservationDraft) (model.Observation, error) {
	if strings.TrimSpace(d.Description) == "" {
		return model.Observation{}, fault.New(fault.Validation, "la observación necesita una descripción")
	}
	if d.RoomID == "" {
		return model.Observation{}, fault.New(fault.Validation, "la observación necesita un recinto")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.UnitID == "" && s.selected != nil {
		d.UnitID = s.selected.ID
	}
	if d.Status == "" {
		d.Status = model.ObservationOpen
	}
	obs := model.Observation{
		ID:          s.ids.New(),
		UnitID:      d.UnitID,
		RoomID:      d.RoomID,
		Description: strings.TrimSpace(d.Description),
		PhotoURL:    d.PhotoURL,
		Status:      d.Status,
	}
	s.observations = append(s.observations, obs)
	return obs, nil
}

// RemoveObservation drops an observation by id.
func (s *Store) RemoveObservation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observations {
		if o.ID == id {
			s.observations = append(s.observations[:i], s.observations[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateObservationStatus sets the status of an observation by id.
func (s *Store) UpdateObservationStatus(id string, status model.ObservationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.observations {
		if s.observations[i].ID == id {
			s.observations[i].Status = status
			return true
		}
	}
	return false
}

// StartProcess moves a scheduled unit to EN_PROCESO once the backend
// acknowledges it. Units whose acta exists are rejected before any network
// call; a unit already in progress with a process id is resumed locally.
func (s *Store) StartProcess(ctx context.Context, unit model.Unit, pt model.ProcessType) (string, error) {
	if pt.Label() == "" {
		return "", ErrNoProcessType
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return "", ErrNoSession
	}
	if cur, ok := s.findLocked(unit); ok {
		unit = cur
	}
	if s.submittedLocked(unit) {
		unit.ProcesoStatus = model.ProcesoRealizado
	}
	if unit.IsHandoverGenerated {
		s.mu.Unlock()
		return "", ErrHandoverGenerated
	}

	switch unit.EffectiveProceso() {
	case model.ProcesoEnProceso:
		if unit.ProcessID != "" {
			s.selectLocked(unit, pt)
			s.mu.Unlock()
			s.logger.Info("resuming process", "unit", unit.ID, "process_id", unit.ProcessID)
			return unit.ProcessID, nil
		}
	case model.ProcesoRealizado, model.ProcesoCancelada:
		s.mu.Unlock()
		return "", fmt.Errorf("%w: unit is %s", ErrInvalidTransition, unit.ProcesoStatus)
	}

	req := StartRequest{
		Assignee:    s.assigneeLocked(unit),
		ProjectName: s.projectLocked(unit.ProjectID).Name,
		Unit:        unit,
		DeviceID:    s.cfg.DeviceID,
		ProcessType: pt,
	}
	s.mu.Unlock()

	processID, err := s.backend.StartProcess(ctx, req)
	if err != nil {
		s.logger.Warn("start process failed", "unit", unit.ID, "error", err)
		return "", err
	}
	if processID == "" {
		return "", fault.New(fault.Logic, "el servidor no devolvió un identificador de proceso")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.units {
		if s.units[i].Same(unit) {
			s.units[i].ProcesoStatus = model.ProcesoEnProceso
			s.units[i].ProcessID = processID
		}
	}
	unit.ProcesoStatus = model.ProcesoEnProceso
	unit.ProcessID = processID
	s.selectLocked(unit, pt)

	s.logger.Info("process started", "unit", unit.ID, "process_id", processID, "type", pt)
	return processID, nil
}

// SubmitInspection sends the finished inspection and refreshes the agenda
// so the completed state comes from the backend. A submitted unit is
// REALIZADO from then on and cannot be submitted or started again in this
// session. On failure the selection and observations are kept for a retry.
func (s *Store) SubmitInspection(ctx context.Context, sig Signatures) (*Completion, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, ErrNoSelectedUnit
	}
	if s.processType == "" {
		s.mu.Unlock()
		return nil, ErrNoProcessType
	}
	if s.session == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	unit := *s.selected
	if s.submittedLocked(unit) {
		unit.ProcesoStatus = model.ProcesoRealizado
	}
	if cur, ok := s.findLocked(unit); ok {
		switch cur.EffectiveProceso() {
		case model.ProcesoRealizado, model.ProcesoCancelada:
			unit.ProcesoStatus = cur.ProcesoStatus
		}
		unit.IsHandoverGenerated = unit.IsHandoverGenerated || cur.IsHandoverGenerated
	}
	if unit.IsHandoverGenerated {
		s.mu.Unlock()
		return nil, ErrHandoverGenerated
	}
	if unit.EffectiveProceso() != model.ProcesoEnProceso {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unit is %s, start the process first", ErrInvalidTransition, unit.EffectiveProceso())
	}
	sub := s.submissionLocked(unit)
	pt := s.processType
	s.mu.Unlock()

	if strings.TrimSpace(sig.Client) == "" || strings.TrimSpace(sig.Representative) == "" {
		return nil, fault.New(fault.Validation, "faltan las firmas del cliente y del representante")
	}
	if err := ValidateContact(UnitPatch{
		OwnerRUT:   &unit.OwnerRUT,
		OwnerPhone: &unit.OwnerPhone,
		OwnerEmail: &unit.OwnerEmail,
	}); err != nil {
		return nil, err
	}
	sub.Signatures = sig

	comp, err := s.backend.CompleteProcess(ctx, sub)
	if err != nil {
		s.logger.Warn("submit inspection failed", "unit", unit.ID, "error", err)
		return nil, err
	}
	s.logger.Info("inspection submitted", "unit", unit.ID, "process_id", unit.ProcessID, "pdf_url", comp.PDFURL)
	s.markSubmitted(unit)

	if s.recorder != nil {
		h := model.Handover{
			ID:          s.ids.New(),
			UnitID:      unit.ID,
			ProcessID:   unit.ProcessID,
			ProcessType: pt,
			Project:     sub.Project,
			Number:      unit.Number,
			SubmittedAt: s.clock.Now(),
			PDFURL:      comp.PDFURL,
		}
		if saved, err := s.recorder.RecordHandover(ctx, h, sig); err != nil {
			s.logger.Error("failed to journal handover", "unit", unit.ID, "error", err)
		} else {
			comp.HandoverID = saved.ID
		}
	}

	if err := s.FetchData(ctx); err != nil && !errors.Is(err, ErrSessionChanged) {
		s.logger.Warn("agenda refresh after submit failed", "error", err)
	}
	return &comp, nil
}

// markSubmitted moves unit to REALIZADO locally so the selection cannot be
// submitted again before the agenda refresh lands.
func (s *Store) markSubmitted(unit model.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, unit)
	for i := range s.units {
		if s.units[i].Same(unit) {
			s.units[i].ProcesoStatus = model.ProcesoRealizado
		}
	}
	if s.selected != nil && s.selected.Same(unit) {
		s.selected.ProcesoStatus = model.ProcesoRealizado
	}
}

// RefreshActaStatus asks the backend whether the unit's acta exists and
// patches the local flags.
func (s *Store) RefreshActaStatus(ctx context.Context, unit model.Unit) (ActaStatus, error) {
	st, err := s.backend.ActaStatus(ctx, unit)
	if err != nil {
		return ActaStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	apply := func(u *model.Unit) {
		u.IsHandoverGenerated = st.Generated
		if st.URL != "" {
			u.HandoverURL = st.URL
		}
		if st.Date != "" {
			u.HandoverDate = st.Date
		}
	}
	for i := range s.units {
		if s.units[i].Same(unit) {
			apply(&s.units[i])
		}
	}
	if s.selected != nil && s.selected.Same(unit) {
		apply(s.selected)
	}
	return st, nil
}

// CheckConnection probes the backend and records the outcome. It never fails;
// callers read the returned status.
func (s *Store) CheckConnection(ctx context.Context) model.ConnectionStatus {
	s.mu.Lock()
	s.connection = model.ConnectionChecking
	s.mu.Unlock()

	status := model.ConnectionConnected
	if err := s.backend.Health(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status = model.ConnectionError
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = status
	return status
}

func (s *Store) submittedLocked(u model.Unit) bool {
	for _, done := range s.submitted {
		if done.Same(u) {
			return true
		}
	}
	return false
}

func (s *Store) findLocked(u model.Unit) (model.Unit, bool) {
	for _, cur := range s.units {
		if cur.Same(u) {
			return cur, true
		}
	}
	return model.Unit{}, false
}

// resyncSelectedLocked carries the agenda's process state onto the
// selection. Contact edits are kept and the status only moves forward.
func (s *Store) resyncSelectedLocked() {
	if s.selected == nil {
		return
	}
	cur, ok := s.findLocked(*s.selected)
	if !ok {
		return
	}
	if procesoRank(cur.EffectiveProceso()) > procesoRank(s.selected.EffectiveProceso()) {
		s.selected.ProcesoStatus = cur.ProcesoStatus
	}
	if cur.ProcessID != "" {
		s.selected.ProcessID = cur.ProcessID
	}
	s.selected.IsHandoverGenerated = s.selected.IsHandoverGenerated || cur.IsHandoverGenerated
	if cur.HandoverURL != "" {
		s.selected.HandoverURL = cur.HandoverURL
	}
	if cur.HandoverDate != "" {
		s.selected.HandoverDate = cur.HandoverDate
	}
}

func procesoRank(p model.ProcesoStatus) int {
	switch p {
	case model.ProcesoEnProceso:
		return 1
	case model.ProcesoRealizado:
		return 2
	case model.ProcesoCancelada:
		return 3
	default:
		return 0
	}
}

// selectLocked makes u the selection, keeping contact edits already made on it.
func (s *Store) selectLocked(u model.Unit, pt model.ProcessType) {
	if s.selected != nil && s.selected.Same(u) {
		s.selected.ProcesoStatus = u.ProcesoStatus
		s.selected.ProcessID = u.ProcessID
	} else {
		cp := u
		s.selected = &cp
	}
	s.processType = pt
}

func (s *Store) assigneeLocked(u model.Unit) string {
	switch {
	case u.InspectorID != "":
		return u.InspectorID
	case s.session.Email != "":
		return s.session.Email
	default:
		return s.session.RUT
	}
}

func (s *Store) projectLocked(id string) model.Project {
	for _, p := range s.projects {
		if p.ID == id {
			return p
		}
	}
	return model.Project{ID: id}
}

func (s *Store) submissionLocked(u model.Unit) Submission {
	p := s.projectLocked(u.ProjectID)
	name := p.Name
	if name == "" {
		name = "Sin Proyecto"
	}
	address := p.Address
	if address == "" {
		address = u.ProjectAddress
	}

	obs := make([]SubmittedObservation, len(s.observations))
	for i, o := range s.observations {
		obs[i] = SubmittedObservation{
			Number:      i + 1,
			Room:        model.RoomName(o.RoomID),
			Description: o.Description,
			Status:      string(o.Status),
			PhotoURL:    o.PhotoURL,
		}
	}

	ownerRUT := u.OwnerRUT
	if ownerRUT != "" {
		ownerRUT = rut.Format(ownerRUT)
	}

	return Submission{
		Type:            s.processType.Label(),
		Project:         name,
		Number:          u.Number,
		ActaDate:        s.clock.Now().In(s.cfg.Resolver.Location()).Format("2006-01-02"),
		BuildingAddress: address,
		Comuna:          s.cfg.Comuna,
		Owner: Owner{
			Name:  u.OwnerName,
			RUT:   ownerRUT,
			Phone: NormalizePhone(u.OwnerPhone),
			Email: strings.TrimSpace(u.OwnerEmail),
		},
		Observations:     obs,
		Assignee:         s.assigneeLocked(u),
		ProcessTypeLabel: u.ProcessTypeLabel,
		Date:             u.Date,
		Time:             u.Time,
		ProcessID:        u.ProcessID,
		DeviceID:         s.cfg.DeviceID,
	}
}

func isConnectionFailure(err error) bool {
	switch fault.KindOf(err) {
	case fault.Timeout, fault.Network, fault.Server:
		return true
	default:
		return false
	}
}
