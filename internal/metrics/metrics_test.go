package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.MessageAppended("visitor")
	m.SubscriptionsChanged(1)
	m.SetAdminOnline(true)
	m.SessionsChanged("admin", 1)
	if m.Handler() == nil {
		t.Fatal("expected a handler for nil metrics")
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.MessageAppended("visitor")
	m.MessageAppended("visitor")
	m.MessageAppended("admin")
	m.SetAdminOnline(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`eten_chat_messages_appended_total{role="visitor"} 2`,
		`eten_chat_messages_appended_total{role="admin"} 1`,
		`eten_chat_admin_online 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}
