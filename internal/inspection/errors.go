package inspection

import "errors"

var (
	ErrNoSession         = errors.New("no inspector session")
	ErrNoSelectedUnit    = errors.New("no unit selected")
	ErrNoProcessType     = errors.New("no process type selected")
	ErrHandoverGenerated = errors.New("acta already generated for this unit")
	ErrInvalidTransition = errors.New("invalid process transition")
	ErrSessionChanged    = errors.New("session changed while fetching")
)
