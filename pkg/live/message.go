package live

import "encoding/json"

// serverMessage covers the subset of Live server events the ordering flow
// consumes. Audio parts of the model turn are intentionally ignored.
type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`

	ServerContent *struct {
		TurnComplete       bool `json:"turnComplete"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
	} `json:"serverContent"`
}

// handleMessage dispatches a single raw server message to the callbacks.
// Unknown or malformed messages are dropped.
func (c *Client) handleMessage(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	if msg.SetupComplete != nil {
		if c.onOpen != nil {
			c.onOpen()
		}
		return
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && c.onTranscriptDelta != nil {
			c.onTranscriptDelta(sc.InputTranscription.Text)
		}
		if sc.TurnComplete && c.onTurnComplete != nil {
			c.onTurnComplete()
		}
	}
}

// sendJSON writes a JSON message, serializing writers.
func (c *Client) sendJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(v)
}
