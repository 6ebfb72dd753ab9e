package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"sehatlog-server/internal/models"
)

func TestBloodPressureRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "bp@example.com")

	rec := env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type":      "blood_pressure",
		"systolic":  120,
		"diastolic": 80,
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bp: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.perform(http.MethodGet, "/api/vitals?type=blood_pressure", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list bp: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data []struct {
			Systolic       int    `json:"systolic"`
			Diastolic      int    `json:"diastolic"`
			FormattedValue string `json:"formattedValue"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 1 {
		t.Fatalf("readings = %d, want 1", len(resp.Data))
	}
	got := resp.Data[0]
	if got.Systolic != 120 || got.Diastolic != 80 {
		t.Fatalf("values = %d/%d, want 120/80", got.Systolic, got.Diastolic)
	}
	if got.FormattedValue != "120/80 mmHg" {
		t.Fatalf("formattedValue = %q, want \"120/80 mmHg\"", got.FormattedValue)
	}
}

func TestVitalsValidationRejectsBadShapes(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "badvitals@example.com")

	cases := []map[string]interface{}{
		{"type": "blood_pressure", "systolic": 120},          // missing diastolic
		{"type": "blood_pressure", "systolic": 10, "diastolic": 80}, // systolic out of range
		{"type": "heart_rate"},                               // missing numeric value
		{"type": "mood"},                                     // missing text value
		{"type": "weight", "numericValue": 70, "unit": "stone"}, // bad unit
		{"type": "levitation", "numericValue": 1},            // unknown type
	}
	for i, payload := range cases {
		rec := env.performJSON(http.MethodPost, "/api/vitals", payload, token)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status=%d, want 400 (payload %v)", i, rec.Code, payload)
		}
	}
}

func TestBMIDerivedFromWeightAndHeight(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerUser(t, "bmi@example.com")

	rec := env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "height", "numericValue": 175, "unit": "cm",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create height: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "weight", "numericValue": 70, "unit": "kg",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create weight: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var bmis []models.VitalReading
	env.db.Where("user_id = ? AND type = ?", userID, models.VitalBMI).Find(&bmis)
	if len(bmis) != 1 {
		t.Fatalf("bmi rows = %d, want 1", len(bmis))
	}
	if bmis[0].Source != models.SourceCalculated {
		t.Fatalf("bmi source = %q, want calculated", bmis[0].Source)
	}
	// 70 / 1.75^2 = 22.9 (rounded to one decimal)
	if bmis[0].NumericValue == nil || *bmis[0].NumericValue != 22.9 {
		t.Fatalf("bmi value = %v, want 22.9", bmis[0].NumericValue)
	}
}

func TestBMIUpsertIsIdempotentWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerUser(t, "bmi2@example.com")

	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "height", "numericValue": 1.8, "unit": "m",
	}, token)

	base := time.Now().Add(-2 * time.Hour)
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "weight", "numericValue": 80, "unit": "kg",
		"recordedAt": base.Format(time.RFC3339),
	}, token)
	// A second weight one hour later must update the same BMI row.
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "weight", "numericValue": 81, "unit": "kg",
		"recordedAt": base.Add(time.Hour).Format(time.RFC3339),
	}, token)

	var bmis []models.VitalReading
	env.db.Where("user_id = ? AND type = ?", userID, models.VitalBMI).Find(&bmis)
	if len(bmis) != 1 {
		t.Fatalf("bmi rows = %d, want exactly 1 in the 24h window", len(bmis))
	}
	// 81 / 1.8^2 = 25.0
	if bmis[0].NumericValue == nil || *bmis[0].NumericValue != 25.0 {
		t.Fatalf("bmi value = %v, want 25 (from latest weight)", bmis[0].NumericValue)
	}
}

func TestLatestVitalsPerType(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "latest@example.com")

	old := time.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "heart_rate", "numericValue": 90, "recordedAt": old,
	}, token)
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "heart_rate", "numericValue": 72,
	}, token)
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "temperature", "numericValue": 37.1, "unit": "C",
	}, token)

	rec := env.perform(http.MethodGet, "/api/vitals/latest", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("latest: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data []struct {
			Type         string   `json:"type"`
			NumericValue *float64 `json:"numericValue"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("latest types = %d, want 2", len(resp.Data))
	}
	for _, v := range resp.Data {
		if v.Type == "heart_rate" && (v.NumericValue == nil || *v.NumericValue != 72) {
			t.Fatalf("latest heart_rate = %v, want 72", v.NumericValue)
		}
	}
}

func TestVitalStats(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "stats@example.com")

	for _, v := range []float64{68, 70, 75} {
		env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
			"type": "heart_rate", "numericValue": v,
		}, token)
	}

	rec := env.perform(http.MethodGet, "/api/vitals/stats?type=heart_rate&days=7", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Count   int64    `json:"count"`
			Average *float64 `json:"average"`
			Min     *float64 `json:"min"`
			Max     *float64 `json:"max"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Data.Count)
	}
	if resp.Data.Min == nil || *resp.Data.Min != 68 || resp.Data.Max == nil || *resp.Data.Max != 75 {
		t.Fatalf("min/max = %v/%v, want 68/75", resp.Data.Min, resp.Data.Max)
	}
	if resp.Data.Average == nil || *resp.Data.Average != 71 {
		t.Fatalf("average = %v, want 71", resp.Data.Average)
	}
}

func TestUpdateVitalPreservesOmittedFlags(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "flags@example.com")

	rec := env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "blood_sugar", "numericValue": 98, "fasting": true,
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	// A value-only update must leave the stored flags alone.
	rec = env.performJSON(http.MethodPut, "/api/vitals/"+created.Data.ID, map[string]interface{}{
		"type": "blood_sugar", "numericValue": 115,
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var reading models.VitalReading
	env.db.First(&reading, "id = ?", created.Data.ID)
	if !reading.Fasting {
		t.Fatal("fasting flag reset by a value-only update")
	}
	if reading.NumericValue == nil || *reading.NumericValue != 115 {
		t.Fatalf("numericValue = %v, want 115", reading.NumericValue)
	}

	// An explicit false must still clear the flag.
	rec = env.performJSON(http.MethodPut, "/api/vitals/"+created.Data.ID, map[string]interface{}{
		"type": "blood_sugar", "fasting": false,
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("flag update: status=%d body=%s", rec.Code, rec.Body.String())
	}
	env.db.First(&reading, "id = ?", created.Data.ID)
	if reading.Fasting {
		t.Fatal("explicit fasting=false not applied")
	}
}

func TestDeactivateHidesReading(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "deact@example.com")

	rec := env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "heart_rate", "numericValue": 70,
	}, token)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = env.perform(http.MethodPatch, "/api/vitals/"+created.Data.ID+"/deactivate", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.perform(http.MethodGet, "/api/vitals", nil, token, "")
	env2 := decodeEnvelope(t, rec)
	if env2.Pagination == nil || env2.Pagination.Total != 0 {
		t.Fatalf("deactivated reading still listed: %s", rec.Body.String())
	}
}
