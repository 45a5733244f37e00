package pushover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendFormFields(t *testing.T) {
	t.Parallel()
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = map[string]string{}
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	d := New(Config{Token: "app-token", UserKey: "user-key", Endpoint: srv.URL})
	detail, err := d.Send(context.Background(), "hello", "greeting", map[string]string{
		"priority": "1",
		"sound":    "magic",
		// Protected fields must not be overridable from task params.
		"token":   "evil",
		"user":    "evil",
		"message": "evil",
	})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if detail != `{"status":1}` {
		t.Fatalf("detail = %q", detail)
	}

	want := map[string]string{
		"user":     "user-key",
		"token":    "app-token",
		"message":  "hello",
		"title":    "greeting",
		"priority": "1",
		"sound":    "magic",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("form[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestSendNon2xxIsDeliveryError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":["application token is invalid"],"status":0}`))
	}))
	defer srv.Close()

	d := New(Config{Token: "bad", UserKey: "u", Endpoint: srv.URL})
	_, err := d.Send(context.Background(), "hi", "", nil)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *DeliveryError", err)
	}
	if derr.Status != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", derr.Status)
	}
}

func TestIsPermanentError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "app token invalid", err: &DeliveryError{Status: 400, Body: `{"errors":["application token is invalid"]}`}, want: true},
		{name: "user key invalid", err: &DeliveryError{Status: 400, Body: `{"errors":["user key is invalid"]}`}, want: true},
		{name: "user invalid", err: errors.New("pushover: user is invalid"), want: true},
		{name: "rate limited", err: &DeliveryError{Status: 429, Body: "message limit reached"}, want: false},
		{name: "transport", err: errors.New("dial tcp: connection refused"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanentError(tt.err); got != tt.want {
				t.Fatalf("IsPermanentError = %v, want %v", got, tt.want)
			}
		})
	}
}
