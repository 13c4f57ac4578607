package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/domain/opportunity"
)

func TestSubmitOpportunity(t *testing.T) {
	var got dto.SubmitOpportunityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/opportunities" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"status":202,"message":"accepted","data":{"accepted":true,"priority":"high"}}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := c.SubmitOpportunity(context.Background(), dto.SubmitOpportunityRequest{
		Opportunity: opportunity.Opportunity{ID: "opp-1"},
		Priority:    "high",
	})
	if err != nil || !res.Accepted || res.Priority != "high" {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	if got.Opportunity.ID != "opp-1" {
		t.Fatalf("request body not sent: %+v", got)
	}
}

func TestServerErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":400,"message":"contact: is required","data":{"field":"contact"}}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, log.New(io.Discard, "", 0))
	_, err := c.ProcessNext(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Message != "contact: is required" {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(" ", nil); err == nil {
		t.Fatalf("expected error")
	}
}
