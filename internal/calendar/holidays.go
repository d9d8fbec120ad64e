package calendar

import (
	"time"

	cal "github.com/rickar/cal/v2"
)

func fixed(name string, month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:  name,
		Type:  cal.ObservancePublic,
		Month: month,
		Day:   day,
		Func:  cal.CalcDayOfMonth,
	}
}

// Chilean public holidays with a fixed date or an Easter offset.
// Holidays moved to the nearest Monday by law are listed on their nominal date.
var (
	AnoNuevo            = fixed("Año Nuevo", time.January, 1)
	ViernesSanto        = &cal.Holiday{Name: "Viernes Santo", Type: cal.ObservancePublic, Offset: -2, Func: cal.CalcEasterOffset}
	SabadoSanto         = &cal.Holiday{Name: "Sábado Santo", Type: cal.ObservancePublic, Offset: -1, Func: cal.CalcEasterOffset}
	DiaDelTrabajo       = fixed("Día del Trabajo", time.May, 1)
	GloriasNavales      = fixed("Día de las Glorias Navales", time.May, 21)
	VirgenDelCarmen     = fixed("Día de la Virgen del Carmen", time.July, 16)
	Asuncion            = fixed("Asunción de la Virgen", time.August, 15)
	FiestasPatrias      = fixed("Independencia Nacional", time.September, 18)
	GloriasDelEjercito  = fixed("Día de las Glorias del Ejército", time.September, 19)
	IglesiasEvangelicas = fixed("Día de las Iglesias Evangélicas", time.October, 31)
	TodosLosSantos      = fixed("Día de Todos los Santos", time.November, 1)
	Inmaculada          = fixed("Inmaculada Concepción", time.December, 8)
	Navidad             = fixed("Navidad", time.December, 25)
)

// Holidays annotates agenda dates that fall on a public holiday.
type Holidays struct {
	bc *cal.BusinessCalendar
}

// NewHolidays returns the Chilean public holiday calendar.
func NewHolidays() *Holidays {
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(
		AnoNuevo,
		ViernesSanto,
		SabadoSanto,
		DiaDelTrabajo,
		GloriasNavales,
		VirgenDelCarmen,
		Asuncion,
		FiestasPatrias,
		GloriasDelEjercito,
		IglesiasEvangelicas,
		TodosLosSantos,
		Inmaculada,
		Navidad,
	)
	return &Holidays{bc: bc}
}

// Name returns the holiday on t's date, if any.
func (h *Holidays) Name(t time.Time) (string, bool) {
	actual, observed, hol := h.bc.IsHoliday(t)
	if (!actual && !observed) || hol == nil {
		return "", false
	}
	return hol.Name, true
}
