package checkout

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/model"
)

// Client-side failure codes.
const (
	FailureUnknownOutcome = "UNKNOWN_OUTCOME"
	FailureNetwork        = "NETWORK_ERROR"
)

// Failure is the error shown on the current step. It is persisted with the state.
type Failure struct {
	Code      string                `json:"code"`
	Message   string                `json:"message"`
	Shortages []model.StockShortage `json:"shortages,omitempty"`
}

func (f *Failure) Error() string {
	return f.Message
}

var failureMessages = map[string]string{
	model.ErrCodeValidation:         "Revisa los datos del formulario",
	model.ErrCodeInvalidJSON:        "La solicitud no es válida",
	model.ErrCodeEmptyCart:          "Tu carrito está vacío",
	model.ErrCodeProductNotFound:    "Algunos productos ya no existen en la tienda",
	model.ErrCodeProductUnavailable: "Algunos productos ya no están disponibles",
	model.ErrCodeInsufficientStock:  "No hay suficiente inventario para tu pedido",
	model.ErrCodeMissingProof:       "Debes subir el comprobante de pago antes de confirmar el pedido",
	model.ErrCodeOrderNotFound:      "No se encontró el pedido",
	model.ErrCodeProfileNotFound:    "No tienes datos guardados",
	model.ErrCodeInvalidState:       "El pedido ya no está pendiente",
	model.ErrCodeUnauthorised:       "No puedes modificar este pedido",
	model.ErrCodeUnauthenticated:    "Debes iniciar sesión",
	model.ErrCodeMethodNotAllowed:   "Operación no permitida",
	model.ErrCodeInternalError:      "Hubo un error en el servidor. Revisa el estado de tu pedido antes de intentar nuevamente",
	FailureNetwork:                  "No se pudo contactar la tienda. Verifica tu conexión e intenta nuevamente",
	FailureUnknownOutcome:           "El envío del pedido se interrumpió. Revisa tu correo o el seguimiento antes de enviarlo otra vez",
}

// failureFrom maps an API call error to the message shown to the shopper.
func failureFrom(err error) *Failure {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &Failure{Code: FailureNetwork, Message: failureMessages[FailureNetwork]}
	}

	f := &Failure{Code: apiErr.Code, Message: failureMessages[apiErr.Code]}
	if f.Message == "" {
		f.Code = model.ErrCodeInternalError
		f.Message = failureMessages[model.ErrCodeInternalError]
	}

	switch apiErr.Code {
	case model.ErrCodeInsufficientStock:
		f.Shortages = apiErr.Shortages()
		lines := make([]string, len(f.Shortages))
		for i, s := range f.Shortages {
			lines[i] = fmt.Sprintf("%s: pediste %d, disponibles %d", s.Product, s.Requested, s.Available)
		}
		if len(lines) > 0 {
			f.Message += ": " + strings.Join(lines, "; ")
		}
	case model.ErrCodeValidation, model.ErrCodeProductNotFound, model.ErrCodeProductUnavailable:
		if apiErr.Message != "" {
			f.Message += ": " + apiErr.Message
		}
	}

	return f
}
