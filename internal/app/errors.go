package app

import (
	"errors"
	"fmt"

	"acta-go/internal/fault"
)

// Describe renders err for the terminal, distinguishing connection
// problems from rejected input and backend failures.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := fault.Message(err)
	switch fault.KindOf(err) {
	case fault.Network:
		return "sin conexión con el servidor: " + msg
	case fault.Timeout:
		return "el servidor no respondió a tiempo: " + msg
	case fault.Server:
		var fe *fault.Error
		if errors.As(err, &fe) && fe.Status != 0 {
			return fmt.Sprintf("error del servidor (HTTP %d): %s", fe.Status, msg)
		}
		return "error del servidor: " + msg
	case fault.Logic:
		return "el servidor rechazó la operación: " + msg
	case fault.Validation:
		return "datos inválidos: " + msg
	case fault.Configuration:
		return "configuración incompleta: " + msg
	default:
		return err.Error()
	}
}
