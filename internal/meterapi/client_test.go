package meterapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "user", "pass")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return server, client
}

func TestLoginStoresToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/session/login":
			var req loginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode login: %v", err)
			}
			if req.Username != "user" || req.Password != "pass" {
				t.Fatalf("unexpected credentials: %+v", req)
			}
			json.NewEncoder(w).Encode(loginResponse{Success: true, Token: "tok-1"})
		case "/api/meters/m1/totals":
			if got := r.Header.Get("X-Authorization"); got != "Bearer tok-1" {
				t.Fatalf("auth header = %q, want bearer token", got)
			}
			json.NewEncoder(w).Encode(totalsResponse{Zones: map[string]float64{"default": 42.5}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	totals, err := client.FetchTotals(context.Background(), "m1")
	if err != nil {
		t.Fatalf("FetchTotals: %v", err)
	}
	if totals["default"] != 42.5 {
		t.Fatalf("totals = %v, want default 42.5", totals)
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(loginResponse{Success: false})
	})

	if err := client.Login(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestFetchHourlyDeltasQueriesDay(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/meters/m1/chart" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("day"); got != "2025-06-01" {
			t.Fatalf("day = %q, want 2025-06-01", got)
		}
		json.NewEncoder(w).Encode(chartResponse{Zones: map[string][]float64{"peak": {0.5, 1.5}}})
	})

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	zones, err := client.FetchHourlyDeltas(context.Background(), "m1", day)
	if err != nil {
		t.Fatalf("FetchHourlyDeltas: %v", err)
	}
	if len(zones["peak"]) != 2 || zones["peak"][1] != 1.5 {
		t.Fatalf("zones = %v", zones)
	}
}

func TestUnauthorizedMapsToTokenExpired(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.FetchTotals(context.Background(), "m1")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestServerErrorMapsToConnection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchTotals(context.Background(), "m1")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestUnreachableHostMapsToConnection(t *testing.T) {
	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.FetchTotals(context.Background(), "m1")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestInvalidJSONMapsToConnection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.FetchTotals(context.Background(), "m1")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}
