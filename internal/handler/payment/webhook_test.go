package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/agenda-api/internal/model"
)

func notificationFrom(target, body string) model.Notification {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	return parseNotification(c)
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   model.Notification
	}{
		{
			name:   "body with numeric ids",
			target: "/agenda/webhook",
			body:   `{"id": 12345, "type": "payment", "action": "payment.updated", "data": {"id": 987654}}`,
			want:   model.Notification{ID: "12345", Type: "payment", Action: "payment.updated", PaymentID: "987654"},
		},
		{
			name:   "body with string ids",
			target: "/agenda/webhook",
			body:   `{"id": "abc", "type": "payment", "data": {"id": "987654"}}`,
			want:   model.Notification{ID: "abc", Type: "payment", PaymentID: "987654"},
		},
		{
			name:   "legacy topic in body",
			target: "/agenda/webhook",
			body:   `{"topic": "payment", "data": {"id": "42"}}`,
			want:   model.Notification{Type: "payment", PaymentID: "42"},
		},
		{
			name:   "query string with data.id",
			target: "/agenda/webhook?type=payment&data.id=555&id=9",
			want:   model.Notification{ID: "9", Type: "payment", PaymentID: "555"},
		},
		{
			name:   "query string with topic",
			target: "/agenda/webhook?topic=payment&id=777",
			want:   model.Notification{Type: "payment", PaymentID: "777"},
		},
		{
			name:   "malformed body",
			target: "/agenda/webhook",
			body:   `{"type": `,
			want:   model.Notification{},
		},
		{
			name:   "null data id",
			target: "/agenda/webhook",
			body:   `{"type": "merchant_order", "data": {"id": null}}`,
			want:   model.Notification{Type: "merchant_order"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notificationFrom(tt.target, tt.body))
		})
	}
}
