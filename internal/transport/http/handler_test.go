package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"platecheck/internal/audit"
	"platecheck/internal/inspection"
	"platecheck/internal/reconcile"
	"platecheck/internal/report"
	"platecheck/internal/vehicle"
)

// =============================================================================
// HTTP Handler Test Suite
// =============================================================================
// Justification for handler tests: status mapping and the auth boundary are
// transport concerns; the service suites never exercise them.

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) (string, error) {
	if token != "good-token" {
		return "", errors.New("invalid token")
	}
	return "auditor-7", nil
}

type HandlerSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	store := vehicle.NewMemoryStore()
	audits := audit.NewService(store, audit.NewMemoryOutcomeStore(), audit.NewJSONQREncoder(), logger)
	service := inspection.New(store, reconcile.New(), audits, logger)

	handler := New(service, logger, nil, staticValidator{})
	s.server = httptest.NewServer(NewRouter(handler))
	s.client = s.server.Client()
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) request(method, path string, body *bytes.Buffer, contentType string) *http.Response {
	var reader *bytes.Buffer
	if body == nil {
		reader = &bytes.Buffer{}
	} else {
		reader = body
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer good-token")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *HandlerSuite) jsonRequest(method, path string, payload any) *http.Response {
	var buf bytes.Buffer
	s.Require().NoError(json.NewEncoder(&buf).Encode(payload))
	return s.request(method, path, &buf, "application/json")
}

func (s *HandlerSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

// uploadFeed posts a CSV file to the feed endpoint and asserts 200.
func (s *HandlerSuite) uploadFeed(kind, filename, content string) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	s.Require().NoError(err)
	_, err = part.Write([]byte(content))
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	resp := s.request(http.MethodPost, "/feeds/"+kind, &buf, form.FormDataContentType())
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *HandlerSuite) beginAudit(plate string) string {
	resp := s.jsonRequest(http.MethodPost, "/audits", map[string]string{"plate": plate})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var session struct {
		SessionID string `json:"session_id"`
		State     string `json:"state"`
	}
	s.decode(resp, &session)
	s.Equal("selected", session.State)
	return session.SessionID
}

func (s *HandlerSuite) TestAuthRequired() {
	for _, path := range []string{"/vehicles/XYZ1", "/reports"} {
		req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
		s.Require().NoError(err)
		resp, err := s.client.Do(req)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode, path)
	}

	// Operational endpoints stay open.
	resp, err := s.client.Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *HandlerSuite) TestFeedUpload() {
	s.Run("merged rows become retrievable vehicles", func() {
		s.uploadFeed("dive_deep", "dive.csv",
			"License Plate,Vehicle,Dive Deep Status\nXYZ1,Van 7,Pass\n")

		resp := s.request(http.MethodGet, "/vehicles/xyz%201", nil, "")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var vehicleResp struct {
			Plate          string `json:"plate"`
			DisplayName    string `json:"display_name"`
			DiveDeepStatus string `json:"dive_deep_status"`
			ShouldPass     bool   `json:"should_pass"`
		}
		s.decode(resp, &vehicleResp)
		s.Equal("XYZ1", vehicleResp.Plate)
		s.Equal("Van 7", vehicleResp.DisplayName)
		s.Equal("pass", vehicleResp.DiveDeepStatus)
	})

	s.Run("unknown feed kind is a 400", func() {
		resp := s.request(http.MethodPost, "/feeds/telemetry", &bytes.Buffer{}, "")
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("skipped rows are reported as warnings", func() {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		part, err := form.CreateFormFile("file", "dive.csv")
		s.Require().NoError(err)
		fmt.Fprint(part, "License Plate,Dive Deep Status\n  ,Pass\nAB12,Fail\n")
		s.Require().NoError(form.Close())

		resp := s.request(http.MethodPost, "/feeds/dive_deep", &buf, form.FormDataContentType())
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var upload struct {
			Warnings []struct {
				Row    int    `json:"row"`
				Reason string `json:"reason"`
			} `json:"warnings"`
		}
		s.decode(resp, &upload)
		s.Require().Len(upload.Warnings, 1)
		s.Contains(upload.Warnings[0].Reason, "empty plate")
	})
}

func (s *HandlerSuite) TestLookupMissing() {
	resp := s.request(http.MethodGet, "/vehicles/NOPE1", nil, "")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestApproveFlow() {
	s.uploadFeed("dive_deep", "dive.csv",
		"License Plate,Vehicle,Dive Deep Status\nXYZ1,Van 7,Pass\n")
	sessionID := s.beginAudit("XYZ1")

	resp := s.request(http.MethodPost, "/audits/"+sessionID+"/approve", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var outcome struct {
		Plate     string `json:"plate"`
		Result    string `json:"result"`
		Auditor   string `json:"auditor"`
		QRPayload string `json:"qr_payload"`
	}
	s.decode(resp, &outcome)
	s.Equal("XYZ1", outcome.Plate)
	s.Equal("pass", outcome.Result)
	s.Equal("auditor-7", outcome.Auditor)
	s.NotEmpty(outcome.QRPayload)

	// A second approve is a conflict, not a fresh decision.
	resp = s.request(http.MethodPost, "/audits/"+sessionID+"/approve", nil, "")
	resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *HandlerSuite) TestBlockFlow() {
	s.uploadFeed("grounded", "grounded.csv",
		"License Plate,Vehicle,Grounded\nAB12,Bus 3,Yes\n")
	sessionID := s.beginAudit("AB12")

	resp := s.request(http.MethodPost, "/audits/"+sessionID+"/block", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var state struct {
		State string `json:"state"`
	}
	s.decode(resp, &state)
	s.Equal("blocked_pending_reason", state.State)

	// Empty problem is a validation failure, not a decision.
	resp = s.jsonRequest(http.MethodPost, "/audits/"+sessionID+"/problem", map[string]string{"problem": "  "})
	resp.Body.Close()
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)

	resp = s.jsonRequest(http.MethodPost, "/audits/"+sessionID+"/problem", map[string]string{"problem": "bald tire"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var outcome struct {
		Result  string `json:"result"`
		Problem string `json:"problem"`
	}
	s.decode(resp, &outcome)
	s.Equal("blocked", outcome.Result)
	s.Equal("bald tire", outcome.Problem)
}

func (s *HandlerSuite) TestCancel() {
	s.uploadFeed("dive_deep", "dive.csv",
		"License Plate,Dive Deep Status\nCD34,Pass\n")
	sessionID := s.beginAudit("CD34")

	resp := s.request(http.MethodPost, "/audits/"+sessionID+"/cancel", nil, "")
	resp.Body.Close()
	s.Equal(http.StatusNoContent, resp.StatusCode)

	// The cancelled session is gone.
	resp = s.request(http.MethodPost, "/audits/"+sessionID+"/approve", nil, "")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestBeginAuditUnknownPlate() {
	resp := s.jsonRequest(http.MethodPost, "/audits", map[string]string{"plate": "NOPE1"})
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestReport() {
	s.uploadFeed("dive_deep", "dive.csv",
		"License Plate,Vehicle,Dive Deep Status\nXYZ1,Van 7,Pass\nAB12,Bus 3,Fail\n")

	approve := s.beginAudit("XYZ1")
	resp := s.request(http.MethodPost, "/audits/"+approve+"/approve", nil, "")
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	block := s.beginAudit("AB12")
	resp = s.request(http.MethodPost, "/audits/"+block+"/block", nil, "")
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp = s.jsonRequest(http.MethodPost, "/audits/"+block+"/problem", map[string]string{"problem": "bald tire"})
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	s.Run("filtered report", func() {
		resp := s.request(http.MethodGet, "/reports?filter=passed", nil, "")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		var rows []struct {
			Plate  string `json:"plate"`
			Result string `json:"result"`
		}
		s.decode(resp, &rows)
		s.Require().Len(rows, 1)
		s.Equal("XYZ1", rows[0].Plate)
		s.Equal("pass", rows[0].Result)
	})

	s.Run("invalid filter is a 400", func() {
		resp := s.request(http.MethodGet, "/reports?filter=bogus", nil, "")
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("spreadsheet export", func() {
		resp := s.request(http.MethodGet, "/reports/export.xlsx", nil, "")
		defer resp.Body.Close()
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Equal(report.SpreadsheetContentType, resp.Header.Get("Content-Type"))
		s.True(strings.Contains(resp.Header.Get("Content-Disposition"), "audit-report.xlsx"))

		// The workbook is buffered before the response commits, so the
		// declared length matches the body exactly.
		body, err := io.ReadAll(resp.Body)
		s.Require().NoError(err)
		s.NotEmpty(body)
		s.Equal(strconv.Itoa(len(body)), resp.Header.Get("Content-Length"))
	})
}
