package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistry_HandlerAndTextfile(t *testing.T) {
	r := NewRegistry()
	r.Emitted.WithLabelValues("buy-orders").Add(3)
	r.Dropped.WithLabelValues("receipts", "no_response").Inc()
	r.Published.Add(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`bosim_stage_emitted_total{stage="buy-orders"} 3`,
		`bosim_stage_skipped_total{reason="no_response",stage="receipts"} 1`,
		`bosim_requests_published_total 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}

	path := filepath.Join(t.TempDir(), "bosim.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "bosim_requests_published_total 3") {
		t.Fatalf("textfile content: %s err=%v", b, err)
	}
}
