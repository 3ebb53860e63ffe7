package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/norasector/gnmax/pkg/gnmax"
	"github.com/norasector/gnmax/pkg/gnmax/device"
)

type fakeController struct {
	status gnmax.Status
	err    error
	calls  []string
}

func (f *fakeController) record(name string, v interface{}) error {
	f.calls = append(f.calls, fmt.Sprintf("%s=%v", name, v))
	return f.err
}

func (f *fakeController) SetBias(v int) error {
	if err := f.record("bias", v); err != nil {
		return err
	}
	f.status.Bias = v
	return nil
}

func (f *fakeController) SetAntenna(v int) error {
	return f.record("antenna", v)
}

func (f *fakeController) SetFrequency(v float64) error {
	return f.record("frequency", v)
}

func (f *fakeController) SetBandwidth(v int) error {
	return f.record("bandwidth", v)
}

func (f *fakeController) Status() gnmax.Status {
	return f.status
}

func TestSettings(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		err      error
		wantCode int
		wantCall string
	}{
		{"bias", http.MethodPut, "/bias/7", nil, http.StatusOK, "bias=7"},
		{"antenna", http.MethodPut, "/antenna/2", nil, http.StatusOK, "antenna=2"},
		{"frequency", http.MethodPut, "/frequency/1575420000", nil, http.StatusOK, "frequency=1.57542e+09"},
		{"bandwidth", http.MethodPut, "/bandwidth/4200000", nil, http.StatusOK, "bandwidth=4200000"},
		{"bad int", http.MethodPut, "/bias/high", nil, http.StatusBadRequest, ""},
		{"bad frequency", http.MethodPut, "/frequency/L1", nil, http.StatusBadRequest, ""},
		{"negative frequency", http.MethodPut, "/frequency/-5", nil, http.StatusBadRequest, ""},
		{"rejected", http.MethodPut, "/bias/16", fmt.Errorf("%w: bias 16", device.ErrConfig), http.StatusUnprocessableEntity, "bias=16"},
		{"closed", http.MethodPut, "/antenna/1", device.ErrClosed, http.StatusInternalServerError, "antenna=1"},
		{"wrong method", http.MethodGet, "/bias/1", nil, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{err: tt.err}
			srv := NewServer(0, ctl)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			switch {
			case tt.wantCall == "" && len(ctl.calls) != 0:
				t.Errorf("unexpected calls %v", ctl.calls)
			case tt.wantCall != "" && (len(ctl.calls) != 1 || ctl.calls[0] != tt.wantCall):
				t.Errorf("calls = %v, want [%s]", ctl.calls, tt.wantCall)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	ctl := &fakeController{status: gnmax.Status{Antenna: 1, FrequencyStep: 1536, Cycles: 12}}
	srv := httptest.NewServer(NewServer(0, ctl).Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/bias/3", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var got gnmax.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Bias != 3 || got.Antenna != 1 || got.FrequencyStep != 1536 || got.Cycles != 12 {
		t.Errorf("status = %+v", got)
	}
}

func TestRejectedIsNotServerError(t *testing.T) {
	err := fmt.Errorf("opening: %w", device.ErrConfig)
	if !errors.Is(err, device.ErrConfig) {
		t.Fatal("wrapping lost the sentinel")
	}
	rec := httptest.NewRecorder()
	NewServer(0, &fakeController{err: err}).Handler().
		ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/bandwidth/18000000", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d", rec.Code)
	}
}
