package mockapi

import (
	"time"

	"acta-go/internal/model"
)

// SampleInspectors is the demo roster.
func SampleInspectors() []model.Inspector {
	return []model.Inspector{
		{RUT: "11.111.111-1", Name: "Ana Pérez", Email: "ana@inmobiliaria.cl", Role: "Inspector"},
		{RUT: "22.222.222-2", Name: "Luis Soto", Email: "luis@inmobiliaria.cl", Role: "Supervisor"},
	}
}

// SampleRows builds a demo agenda around today. Dates use the day-first
// layout the spreadsheet exports.
func SampleRows(today time.Time) []map[string]string {
	day := func(n int) string { return today.AddDate(0, 0, n).Format("02/01/2006") }

	return []map[string]string{
		{
			ColInspector: "11111111-1", ColProject: "Edificio A", ColAddress: "Av. Providencia 1234",
			ColNumber: "101", ColOwner: "María González", ColOwnerRUT: "12345678-5",
			ColOwnerPhone: "987654321", ColOwnerEmail: "maria@correo.cl",
			ColProcessType: "PRE ENTREGA", ColParking: "E-12", ColStorage: "B-4",
			ColActive: "activo", ColDate: day(0), ColTime: "10:00", ColProceso: "PROGRAMADA",
		},
		{
			ColInspector: "ana@inmobiliaria.cl", ColProject: "Edificio A", ColAddress: "Av. Providencia 1234",
			ColNumber: "102", ColOwner: "Jorge Muñoz", ColActive: "activo",
			ColProcessType: "ENTREGA FINAL", ColDate: day(0), ColTime: "9:30",
		},
		{
			ColInspector: "11111111-1", ColProject: "Edificio B", ColAddress: "Los Leones 55",
			ColNumber: "305", ColOwner: "Carla Díaz", ColActive: "activo",
			ColDate: day(3), ColTime: "15:00",
		},
		{
			ColInspector: "11111111-1", ColProject: "Edificio B", ColAddress: "Los Leones 55",
			ColNumber: "306", ColActive: "inactivo", ColDate: day(1), ColTime: "11:00",
		},
		{
			ColInspector: "22222222-2", ColProject: "Edificio C", ColNumber: "12",
			ColActive: "activo", ColDate: day(0), ColTime: "12:00",
		},
	}
}
