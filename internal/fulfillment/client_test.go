package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/config"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
)

func newPanelServer(t *testing.T, handler func(action string, form map[string]string) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handler(form["action"], form))
	}))
}

func newTestClient(apiURL, apiKey string) Client {
	return New(config.FulfillmentConfig{
		APIURL:  apiURL,
		APIKey:  apiKey,
		Timeout: 2 * time.Second,
	}, nil)
}

func TestSubmitSendsPanelServiceID(t *testing.T) {
	var gotService, gotKey string
	server := newPanelServer(t, func(action string, form map[string]string) any {
		if action != "add" {
			t.Fatalf("expected add action, got %s", action)
		}
		gotService = form["service"]
		gotKey = form["key"]
		return map[string]any{"order": 23501}
	})
	defer server.Close()

	client := newTestClient(server.URL, "secret")
	ref, err := client.Submit(context.Background(), "ig_followers", "https://instagram.com/acme", 500)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if ref != "23501" {
		t.Fatalf("expected external ref 23501, got %s", ref)
	}
	if gotService != "1001" {
		t.Fatalf("expected panel id 1001, got %s", gotService)
	}
	if gotKey != "secret" {
		t.Fatalf("api key not sent")
	}
}

func TestSubmitUnknownService(t *testing.T) {
	client := newTestClient("http://unused", "secret")
	_, err := client.Submit(context.Background(), "nope", "https://x", 100)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPanelErrorSurfaced(t *testing.T) {
	server := newPanelServer(t, func(action string, form map[string]string) any {
		return map[string]string{"error": "not enough funds"}
	})
	defer server.Close()

	client := newTestClient(server.URL, "secret")
	_, err := client.Submit(context.Background(), "ig_likes", "https://x", 100)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
	if !strings.Contains(err.Error(), "not enough funds") {
		t.Fatalf("panel message lost: %v", err)
	}
}

func TestStatusParsesNumbers(t *testing.T) {
	server := newPanelServer(t, func(action string, form map[string]string) any {
		if form["order"] != "23501" {
			t.Fatalf("unexpected order %s", form["order"])
		}
		return map[string]any{"status": "Partial", "charge": "0.27", "start_count": "3572", "remains": "157"}
	})
	defer server.Close()

	client := newTestClient(server.URL, "secret")
	status, err := client.Status(context.Background(), "23501")
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if status.Status != "Partial" || status.StartCount != 3572 || status.Remains != 157 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDemoModeWithoutKey(t *testing.T) {
	client := newTestClient("http://unreachable.invalid", "")
	if !client.Demo() {
		t.Fatalf("empty key should enable demo mode")
	}

	ref, err := client.Submit(context.Background(), "tg_members", "https://t.me/acme", 100)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !strings.HasPrefix(ref, "DEMO-ORD-") {
		t.Fatalf("expected synthetic reference, got %s", ref)
	}

	if err := client.Cancel(context.Background(), ref); err != nil {
		t.Fatalf("demo cancel should be a no-op, got %v", err)
	}
}

func TestServicePricingRoundsUp(t *testing.T) {
	svc, ok := LookupService("ig_likes")
	if !ok {
		t.Fatalf("catalog entry missing")
	}
	if got := svc.Price(1000); got != 8000 {
		t.Fatalf("expected 8000 for 1000 units, got %d", got)
	}
	if got := svc.Price(50); got != 400 {
		t.Fatalf("expected 400 for 50 units, got %d", got)
	}
	if got := svc.Price(1); got != 8 {
		t.Fatalf("expected ceil rounding to 8, got %d", got)
	}
}
