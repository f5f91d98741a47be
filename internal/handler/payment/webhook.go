package payment

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/model"
)

// webhookBody accepts both notification shapes the gateway sends. Ids may
// arrive as JSON strings or numbers.
type webhookBody struct {
	ID     json.RawMessage `json:"id"`
	Type   string          `json:"type"`
	Topic  string          `json:"topic"`
	Action string          `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// parseNotification reads the JSON body and falls back to the query string
// (?type=payment&data.id=… or ?topic=payment&id=…). A malformed body yields
// an empty notification, which the reconciler ignores.
func parseNotification(c *gin.Context) model.Notification {
	var body webhookBody
	if raw, err := io.ReadAll(c.Request.Body); err == nil && len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	n := model.Notification{
		ID:        rawID(body.ID),
		Type:      firstNonEmpty(body.Type, body.Topic),
		Action:    body.Action,
		PaymentID: rawID(body.Data.ID),
	}

	if n.Type == "" {
		n.Type = firstNonEmpty(c.Query("type"), c.Query("topic"))
	}
	if n.PaymentID == "" {
		n.PaymentID = c.Query("data.id")
	}
	if n.PaymentID == "" && c.Query("topic") != "" {
		n.PaymentID = c.Query("id")
	}
	if n.ID == "" && c.Query("type") != "" {
		n.ID = c.Query("id")
	}
	return n
}

func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
