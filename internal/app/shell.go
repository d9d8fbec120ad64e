package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"acta-go/internal/archive"
	"acta-go/internal/inspection"
	"acta-go/internal/model"
)

const shellHelp = `comandos:
  login [rut|email]          iniciar sesión
  logout                     cerrar sesión
  agenda                     recargar y listar las visitas de hoy
  upcoming [días]            listar las próximas visitas
  select N                   seleccionar la visita N del último listado
  type pre|final             tipo de proceso
  patch CAMPO VALOR          nombre, rut, telefono o email del propietario
  start                      iniciar el proceso de la unidad seleccionada
  obs                        listar observaciones
  obs add RECINTO TEXTO      agregar observación (recinto por id o nombre)
  obs rm ID                  quitar observación
  obs status ID ESTADO       OPEN, REPAIRING o CLOSED
  rooms                      listar recintos
  submit CLIENTE.png REP.png enviar el acta con las firmas
  acta                       consultar el estado del acta
  health                     probar la conexión
  quit                       salir`

// Shell is the interactive inspection loop. Commands act on the app's
// store; the last listing is kept so units can be selected by number.
type Shell struct {
	app    *ActaApp
	in     *bufio.Scanner
	out    io.Writer
	prompt bool
	listed []model.Unit
	// last submitted unit, for acta lookups after the selection is cleared
	submitted *model.Unit
}

// NewShell reads commands from in. The prompt is shown only when in is a
// terminal.
func NewShell(a *ActaApp, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		app:    a,
		in:     bufio.NewScanner(in),
		out:    out,
		prompt: isTerminal(in),
	}
}

// Run processes commands until quit, EOF or ctx is done. Command errors
// are printed and the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if s.prompt {
			fmt.Fprint(s.out, s.promptText())
		}
		if !s.in.Scan() {
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quit, err := s.Exec(ctx, line)
		if err != nil {
			fmt.Fprintln(s.out, "error:", Describe(err))
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) promptText() string {
	if who, ok := s.app.store.Session(); ok {
		return who.Name + "> "
	}
	return "acta> "
}

// Exec runs one command line. It reports true when the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]
	store := s.app.store

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)

	case "login":
		if err := s.app.Login(ctx, strings.Join(args, " ")); err != nil {
			return false, err
		}
		who, _ := store.Session()
		fmt.Fprintf(s.out, "sesión iniciada: %s (%s)\n", who.Name, who.Email)
		if msg := store.DataError(); msg != "" {
			fmt.Fprintln(s.out, "aviso:", msg)
		}
	case "logout":
		store.Logout()
		s.listed, s.submitted = nil, nil
		fmt.Fprintln(s.out, "sesión cerrada")

	case "agenda":
		if err := store.FetchData(ctx); err != nil {
			return false, err
		}
		s.list(store.ScheduledToday(), "sin visitas para hoy")
	case "upcoming":
		days := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return false, fmt.Errorf("días inválidos: %s", args[0])
			}
			days = n
		}
		s.list(store.Upcoming(days), "sin visitas próximas")

	case "select":
		u, err := s.pick(args)
		if err != nil {
			return false, err
		}
		store.SetSelectedUnit(&u)
		fmt.Fprintln(s.out, "seleccionada:", s.app.UnitLine(u))
	case "type":
		if len(args) != 1 {
			return false, errors.New("uso: type pre|final")
		}
		pt, ok := model.ParseProcessType(args[0])
		if !ok {
			return false, fmt.Errorf("tipo de proceso desconocido: %s", args[0])
		}
		store.SetProcessType(pt)
		fmt.Fprintln(s.out, "tipo:", pt.Label())
	case "patch":
		if err := s.patch(args); err != nil {
			return false, err
		}

	case "start":
		u, ok := store.SelectedUnit()
		if !ok {
			return false, inspection.ErrNoSelectedUnit
		}
		id, err := s.app.StartProcess(ctx, u, store.ProcessType())
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "proceso iniciado:", id)

	case "obs":
		return false, s.observations(args)
	case "rooms":
		for _, r := range model.Rooms {
			fmt.Fprintf(s.out, "%-4s %s\n", r.ID, r.Name)
		}

	case "submit":
		if len(args) != 2 {
			return false, errors.New("uso: submit CLIENTE.png REP.png")
		}
		sig, err := LoadSignatures(args[0], args[1])
		if err != nil {
			return false, err
		}
		u, _ := store.SelectedUnit()
		comp, err := s.app.Submit(ctx, sig)
		if err != nil {
			return false, err
		}
		s.submitted = &u
		store.ClearSession()
		fmt.Fprintln(s.out, "acta enviada")
		if comp.Message != "" {
			fmt.Fprintln(s.out, comp.Message)
		}
		if comp.PDFURL != "" {
			fmt.Fprintln(s.out, "pdf:", comp.PDFURL)
		}
	case "acta":
		u, ok := store.SelectedUnit()
		if !ok && s.submitted != nil {
			u, ok = *s.submitted, true
		}
		if !ok {
			return false, inspection.ErrNoSelectedUnit
		}
		st, err := store.RefreshActaStatus(ctx, u)
		if err != nil {
			return false, err
		}
		if !st.Generated {
			fmt.Fprintln(s.out, "acta no generada")
			break
		}
		fmt.Fprintf(s.out, "acta generada %s %s\n", st.Date, st.URL)

	case "health":
		fmt.Fprintln(s.out, s.app.Health(ctx))

	default:
		return false, fmt.Errorf("comando desconocido: %s (help para ayuda)", cmd)
	}
	return false, nil
}

func (s *Shell) list(units []model.Unit, empty string) {
	s.listed = units
	if len(units) == 0 {
		fmt.Fprintln(s.out, empty)
		return
	}
	for i, u := range units {
		fmt.Fprintf(s.out, "%2d  %s\n", i+1, s.app.UnitLine(u))
	}
}

func (s *Shell) pick(args []string) (model.Unit, error) {
	if len(args) != 1 {
		return model.Unit{}, errors.New("uso: select N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.listed) {
		return model.Unit{}, fmt.Errorf("no hay visita %s en el último listado", args[0])
	}
	return s.listed[n-1], nil
}

func (s *Shell) patch(args []string) error {
	if len(args) < 2 {
		return errors.New("uso: patch CAMPO VALOR")
	}
	value := strings.Join(args[1:], " ")
	var p inspection.UnitPatch
	switch args[0] {
	case "nombre", "name":
		p.OwnerName = &value
	case "rut":
		p.OwnerRUT = &value
	case "telefono", "phone":
		p.OwnerPhone = &value
	case "email":
		p.OwnerEmail = &value
	default:
		return fmt.Errorf("campo desconocido: %s", args[0])
	}
	if err := inspection.ValidateContact(p); err != nil {
		return err
	}
	if !s.app.store.UpdateSelectedUnit(p) {
		return inspection.ErrNoSelectedUnit
	}
	return nil
}

func (s *Shell) observations(args []string) error {
	store := s.app.store
	if len(args) == 0 {
		obs := store.Observations()
		if len(obs) == 0 {
			fmt.Fprintln(s.out, "sin observaciones")
		}
		for i, o := range obs {
			fmt.Fprintf(s.out, "%2d  %s  %-16s %-9s %s\n", i+1, o.ID, model.RoomName(o.RoomID), o.Status, o.Description)
		}
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			return errors.New("uso: obs add RECINTO TEXTO")
		}
		room, ok := model.RoomByName(args[1])
		if !ok {
			return fmt.Errorf("recinto desconocido: %s (rooms para la lista)", args[1])
		}
		o, err := store.AddObservation(inspection.ObservationDraft{
			RoomID:      room.ID,
			Description: strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, "observación", o.ID)
	case "rm":
		if len(args) != 2 {
			return errors.New("uso: obs rm ID")
		}
		if !store.RemoveObservation(args[1]) {
			return fmt.Errorf("observación %s no existe", args[1])
		}
	case "status":
		if len(args) != 3 {
			return errors.New("uso: obs status ID ESTADO")
		}
		status := model.ObservationStatus(strings.ToUpper(args[2]))
		switch status {
		case model.ObservationOpen, model.ObservationRepairing, model.ObservationClosed:
		default:
			return fmt.Errorf("estado desconocido: %s", args[2])
		}
		if !store.UpdateObservationStatus(args[1], status) {
			return fmt.Errorf("observación %s no existe", args[1])
		}
	default:
		return fmt.Errorf("uso: obs [add|rm|status]")
	}
	return nil
}

// UnitLine renders a unit for listings.
func (a *ActaApp) UnitLine(u model.Unit) string {
	project := u.ProjectID
	for _, p := range a.store.Projects() {
		if p.ID == u.ProjectID {
			project = p.Name
			break
		}
	}
	line := fmt.Sprintf("%-10s %-5s %-20s %-6s %-11s %s", u.Date, u.Time, project, u.Number, u.EffectiveProceso(), u.ProcessTypeLabel)
	if u.IsHandoverGenerated {
		line += "  [acta]"
	}
	if name, ok := a.Holiday(u); ok {
		line += "  (feriado: " + name + ")"
	}
	return line
}

// LoadSignatures reads two image files into data URLs.
func LoadSignatures(clientPath, repPath string) (inspection.Signatures, error) {
	client, err := loadImage(clientPath)
	if err != nil {
		return inspection.Signatures{}, err
	}
	rep, err := loadImage(repPath)
	if err != nil {
		return inspection.Signatures{}, err
	}
	return inspection.Signatures{Client: client, Representative: rep}, nil
}

func loadImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading signature: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("signature %s is empty", path)
	}
	return archive.EncodeDataURL(http.DetectContentType(data), data), nil
}

// ReadSecret prompts for a passphrase without echo when in is a terminal
// and reads a plain line otherwise.
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

// readLine reads up to a newline one byte at a time so that successive
// prompts on a piped stdin each get their own line.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			sb.WriteByte(b[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
