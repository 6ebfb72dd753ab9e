package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"sehatlog-server/internal/models"
)

// seedInsight uploads one PDF and waits for its analysis, returning the
// created insight's ID.
func seedInsight(t *testing.T, env *testEnv, token string) string {
	t.Helper()
	rec := env.uploadReport(t, token, validUploadFields(),
		[]filePart{{"a.pdf", "application/pdf", pdfBytes}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed upload: status=%d body=%s", rec.Code, rec.Body.String())
	}
	env.analyzer.Wait()

	var insight models.Insight
	if err := env.db.Order("created_at desc").First(&insight).Error; err != nil {
		t.Fatalf("no insight created: %v", err)
	}
	return insight.ID
}

func TestListInsights(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "insights@example.com")
	seedInsight(t, env, token)

	rec := env.perform(http.MethodGet, "/api/insights", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list insights: status=%d body=%s", rec.Code, rec.Body.String())
	}
	envl := decodeEnvelope(t, rec)
	if envl.Pagination == nil || envl.Pagination.Total != 1 {
		t.Fatalf("insight total wrong: %s", rec.Body.String())
	}
}

func TestMarkInsightRead(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "read@example.com")
	insightID := seedInsight(t, env, token)

	rec := env.perform(http.MethodPatch, "/api/insights/"+insightID+"/read", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var insight models.Insight
	env.db.First(&insight, "id = ?", insightID)
	if !insight.IsRead || insight.ReadAt == nil {
		t.Fatalf("insight not marked read: isRead=%v readAt=%v", insight.IsRead, insight.ReadAt)
	}

	// Unread filter must now exclude it.
	rec = env.perform(http.MethodGet, "/api/insights?unread=true", nil, token, "")
	envl := decodeEnvelope(t, rec)
	if envl.Pagination == nil || envl.Pagination.Total != 0 {
		t.Fatalf("unread filter still returns read insight: %s", rec.Body.String())
	}
}

func TestInsightFeedback(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "feedback@example.com")
	insightID := seedInsight(t, env, token)

	helpful := true
	rec := env.performJSON(http.MethodPost, "/api/insights/"+insightID+"/feedback", map[string]interface{}{
		"helpful": helpful,
		"comment": "very clear explanation",
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var insight models.Insight
	env.db.First(&insight, "id = ?", insightID)
	if insight.Feedback.Helpful == nil || !*insight.Feedback.Helpful {
		t.Fatalf("feedback not stored: %+v", insight.Feedback)
	}
}

func TestInsightOwnershipReadsAsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.registerUser(t, "iowner@example.com")
	otherToken, _ := env.registerUser(t, "iother@example.com")
	insightID := seedInsight(t, env, ownerToken)

	rec := env.perform(http.MethodGet, "/api/insights/"+insightID, nil, otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-user insight read: status=%d, want 404", rec.Code)
	}
}

func TestInsightDisclaimersAlwaysPresent(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "disc@example.com")
	insightID := seedInsight(t, env, token)

	rec := env.perform(http.MethodGet, "/api/insights/"+insightID, nil, token, "")
	var resp struct {
		Data struct {
			Disclaimers struct {
				English string `json:"english"`
				Urdu    string `json:"urdu"`
			} `json:"disclaimers"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Disclaimers.English == "" || resp.Data.Disclaimers.Urdu == "" {
		t.Fatalf("disclaimers empty in response: %s", rec.Body.String())
	}
}

func TestDashboardAggregates(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "dash@example.com")
	seedInsight(t, env, token)
	env.performJSON(http.MethodPost, "/api/vitals", map[string]interface{}{
		"type": "heart_rate", "numericValue": 70,
	}, token)

	rec := env.perform(http.MethodGet, "/api/user/dashboard", nil, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			ReportsLast30Days int64 `json:"reportsLast30Days"`
			VitalsLast7Days   int64 `json:"vitalsLast7Days"`
			TotalInsights     int64 `json:"totalInsights"`
			UnreadInsights    int64 `json:"unreadInsights"`
			RecentInsights    []struct {
				ReportType string `json:"reportType"`
			} `json:"recentInsights"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.ReportsLast30Days != 1 || resp.Data.VitalsLast7Days != 1 {
		t.Fatalf("counts wrong: %+v", resp.Data)
	}
	if resp.Data.TotalInsights != 1 || resp.Data.UnreadInsights != 1 {
		t.Fatalf("insight counts wrong: %+v", resp.Data)
	}
	if len(resp.Data.RecentInsights) != 1 || resp.Data.RecentInsights[0].ReportType != "blood_test" {
		t.Fatalf("recent insights not annotated with report type: %+v", resp.Data.RecentInsights)
	}
}
