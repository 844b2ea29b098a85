package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestParseTime_AcceptsBackendLayouts(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
		year int
	}{
		{"2024-03-05T10:20:30Z", false, 2024},
		{"2024-03-05T10:20:30.1234567", false, 2024},
		{"2024-03-05T10:20:30", false, 2024},
		{"2023-11-01", false, 2023},
		{"", true, 0},
		{"not a date", true, 0},
	}
	for _, tt := range tests {
		got := ParseTime(tt.in)
		if got.IsZero() != tt.zero {
			t.Fatalf("ParseTime(%q).IsZero() = %v, want %v", tt.in, got.IsZero(), tt.zero)
		}
		if !tt.zero && got.Year() != tt.year {
			t.Fatalf("ParseTime(%q).Year() = %d, want %d", tt.in, got.Year(), tt.year)
		}
	}
}

func TestMachine_DecodesFlattenedMagazineProperties(t *testing.T) {
	raw := `{"id":1,"number":"M-1","status":"InMaintenance","lastMaintenanceDate":null,"customerName":"ACME","voltage":400,"hasCeCertificate":true}`
	var m Machine
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.CustomerName != "ACME" || m.Voltage == nil || *m.Voltage != 400 || m.HasCECertificate == nil || !*m.HasCECertificate {
		t.Fatalf("magazine properties not decoded: %+v", m.MagazineProperties)
	}
	if m.Status != StatusInMaintenance || !m.LastMaintained().IsZero() {
		t.Fatalf("machine = %+v", m)
	}
}

func TestMachineUpdate_ApplyToOnlySetFields(t *testing.T) {
	m := Machine{ID: 1, Number: "M-1", Type: "Lathe", OperatingHours: 10, Status: StatusActive}
	status := StatusOutOfService
	got := MachineUpdate{Status: &status}.ApplyTo(m)
	if got.Status != StatusOutOfService || got.Number != "M-1" || got.OperatingHours != 10 {
		t.Fatalf("ApplyTo = %+v", got)
	}
}

func TestPartInput_Validate(t *testing.T) {
	valid := PartInput{PartNumber: "TEST-1", Name: "X", Price: 99.99, StockQuantity: 10, Category: CategoryWearPart}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate(valid) = %v", err)
	}

	bad := PartInput{Price: 0, StockQuantity: -1, Category: "Gadget"}
	err := bad.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate(bad) = %v, want *ValidationError", err)
	}
	if len(vErr.Errors) != 5 {
		t.Fatalf("errors = %v, want 5 problems", vErr.Errors)
	}
}

func TestMachineCreate_ValidateAndProvisional(t *testing.T) {
	if err := (MachineCreate{Number: "M-1", Type: "Mill"}).Validate(); err != nil {
		t.Fatalf("Validate = %v", err)
	}
	if err := (MachineCreate{OperatingHours: -1, Status: "Broken"}).Validate(); err == nil {
		t.Fatalf("Validate returned nil for invalid input")
	}
	m := MachineCreate{Number: "M-1", Type: "Mill"}.Machine(-1)
	if m.ID != -1 || m.Status != StatusActive {
		t.Fatalf("provisional machine = %+v", m)
	}
}

func TestAPIError_MessageAndClassification(t *testing.T) {
	err := parseAPIError(http.MethodGet, "/Machines/id/4", http.StatusNotFound, []byte(`{"message":"Machine not found"}`))
	if !IsNotFound(err) || !IsClientError(err) {
		t.Fatalf("classification wrong for %v", err)
	}
	if !strings.Contains(err.Error(), "status 404") || UserMessage(err) != "Machine not found" {
		t.Fatalf("Error() = %q, UserMessage = %q", err.Error(), UserMessage(err))
	}

	plain := parseAPIError(http.MethodPost, "/x", http.StatusInternalServerError, []byte("boom"))
	if plain.Message != "boom" || IsClientError(plain) {
		t.Fatalf("plain error = %+v", plain)
	}

	empty := parseAPIError(http.MethodPost, "/x", http.StatusConflict, nil)
	if !strings.Contains(empty.Error(), "Conflict") {
		t.Fatalf("empty body error = %q, want status text", empty.Error())
	}

	list := parseAPIError(http.MethodPost, "/x", http.StatusBadRequest, []byte(`{"errors":["a","b"]}`))
	if UserMessage(list) != "a\nb" {
		t.Fatalf("UserMessage(list) = %q", UserMessage(list))
	}
}
