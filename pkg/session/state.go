package session

import "github.com/cafevoz/cafevoz/pkg/order"

// State is the lifecycle phase of a voice session.
type State string

const (
	// StateIdle means no session is running.
	StateIdle State = "idle"
	// StateConnecting means the transcription stream is being opened.
	StateConnecting State = "connecting"
	// StateListening means mic frames are flowing to the stream.
	StateListening State = "listening"
	// StateProcessing means the turn ended and the transcript is being
	// parsed and confirmed.
	StateProcessing State = "processing"
)

// Customer-facing status lines, shown on the kiosk display.
const (
	StatusReady         = "Listo para tomar tu pedido"
	StatusConnecting    = "Conectando..."
	StatusListening     = "¡Te escucho! Dime qué deseas ordenar..."
	StatusProcessing    = "Procesando tu pedido..."
	StatusConfirming    = "Confirmando tu pedido..."
	StatusConfirmed     = "¡Pedido confirmado!"
	StatusNoOrder       = "No detectamos ningún pedido. Intenta de nuevo."
	StatusNotUnderstood = "No pudimos entender tu pedido del menú. Por favor, intenta de nuevo."
	StatusMicError      = "No se pudo acceder al micrófono."
	StatusStreamError   = "Hubo un error en la conexión. Intenta de nuevo."
)

// EventType tags a controller event.
type EventType string

const (
	// EventState reports a state or status change.
	EventState EventType = "state"
	// EventTranscript carries the live transcript as it grows.
	EventTranscript EventType = "transcript"
	// EventOrder reports a parsed order.
	EventOrder EventType = "order"
)

// Event is a controller notification, consumed by display surfaces and
// metrics.
type Event struct {
	Type       EventType    `json:"type"`
	SessionID  string       `json:"session_id"`
	State      State        `json:"state"`
	Status     string       `json:"status"`
	Transcript string       `json:"transcript,omitempty"`
	Lines      []order.Line `json:"lines,omitempty"`
	Total      float64      `json:"total,omitempty"`
}
