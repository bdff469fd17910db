package intel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestParseBaseline(t *testing.T) {
	input := `# production prefixes
8.8.8.0/24, 15169

1.1.1.0/24,AS13335
malformed line
192.0.2.0/24 , as64500 , trailing field
`
	targets, err := ParseBaseline(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseBaseline failed: %v", err)
	}
	want := []Target{
		{Prefix: "8.8.8.0/24", ASN: "AS15169"},
		{Prefix: "1.1.1.0/24", ASN: "AS13335"},
		{Prefix: "192.0.2.0/24", ASN: "AS64500"},
	}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("ParseBaseline = %+v, want %+v", targets, want)
	}
}

func TestValidatePrefix(t *testing.T) {
	if err := ValidatePrefix("8.8.8.0/24"); err != nil {
		t.Errorf("ValidatePrefix(8.8.8.0/24) failed: %v", err)
	}
	if err := ValidatePrefix("8.8.8.8"); err == nil {
		t.Error("expected error for bare IP")
	}
	if err := ValidatePrefix("garbage"); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		expected   string
		wantStatus string
		wantReason string
		wantNames  map[string]string
	}{
		{
			name:       "expected origin present",
			body:       `{"status": "ok", "data": {"asns": [{"asn": 15169}]}}`,
			expected:   "AS15169",
			wantStatus: StatusOK,
			wantReason: ReasonExpectedPresent,
		},
		{
			name:       "origin mismatch",
			body:       `{"status": "ok", "data": {"asns": [{"asn": 64500}]}}`,
			expected:   "AS15169",
			wantStatus: StatusAlert,
			wantReason: ReasonOriginMismatch,
			wantNames:  map[string]string{"AS64500": "HIJACKER-NET"},
		},
		{
			name:       "no origin data",
			body:       `{"status": "ok", "data": {}}`,
			expected:   "AS15169",
			wantStatus: StatusUnknown,
			wantReason: ReasonNoOriginData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/asn/") {
					_, _ = w.Write([]byte(`{"status": "ok", "data": {"asn": 64500, "name": "HIJACKER-NET", "country_code": "ZZ"}}`))
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			e := NewEnricher()
			e.BGPView.BaseURL = srv.URL
			e.Delay = 0

			result := e.CheckOrigin(context.Background(), "8.8.8.0/24", tt.expected)
			if result.Status != tt.wantStatus || result.Reason != tt.wantReason {
				t.Errorf("result = %+v, want %s/%s", result, tt.wantStatus, tt.wantReason)
			}
			if !reflect.DeepEqual(result.ObservedNames, tt.wantNames) {
				t.Errorf("ObservedNames = %v, want %v", result.ObservedNames, tt.wantNames)
			}
		})
	}
}

func TestCheckOriginUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	e := NewEnricher()
	e.BGPView.BaseURL = srv.URL

	result := e.CheckOrigin(context.Background(), "8.8.8.0/24", "15169")
	if result.Status != StatusError || result.Reason == "" {
		t.Errorf("result = %+v, want error status with reason", result)
	}
	if len(result.Observed) != 0 {
		t.Errorf("Observed = %v, want empty", result.Observed)
	}
}

func TestCheckRPKI(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"rpki-validation 8.8.8.0/24 AS15169": `{"status": "valid"}`,
	})

	result := e.CheckRPKI(context.Background(), "8.8.8.0/24", "15169")
	if result.State != "valid" || result.ASN != "AS15169" || result.Source != "RIPEstat" {
		t.Errorf("result = %+v", result)
	}
}

func TestCheckRPKIError(t *testing.T) {
	e := newTestEnricher(t, map[string]string{})

	result := e.CheckRPKI(context.Background(), "8.8.8.0/24", "AS15169")
	if result.State != StatusError || result.Error == "" {
		t.Errorf("result = %+v, want error state", result)
	}
}
