package ai

import (
	"encoding/json"
	"strings"

	"sehatlog-server/internal/models"
)

// fallbackSummaryLimit caps how much raw model text the fallback carries
// as the English summary.
const fallbackSummaryLimit = 500

// analysisPayload matches the JSON shape the prompt requests.
type analysisPayload struct {
	Summary             models.Bilingual        `json:"summary"`
	KeyFindings         []models.KeyFinding     `json:"keyFindings"`
	AbnormalValues      []models.AbnormalValue  `json:"abnormalValues"`
	DoctorQuestions     []models.DoctorQuestion `json:"doctorQuestions"`
	Recommendations     models.Recommendations  `json:"recommendations"`
	RiskFactors         []string                `json:"riskFactors"`
	FollowUpSuggestions []string                `json:"followUpSuggestions"`
	Confidence          int                     `json:"confidence"`
	Disclaimers         models.Disclaimers      `json:"disclaimers"`
}

// ParseResponse turns free-form model output into an AnalysisResult.
// When the text contains a balanced JSON object matching the documented
// schema the result is the parsed payload (Source=structured); otherwise
// it is the deterministic fallback built from the raw text
// (Source=fallback). It never returns nil.
func ParseResponse(raw string) *AnalysisResult {
	if jsonStr, ok := extractJSONObject(raw); ok {
		var payload analysisPayload
		if err := json.Unmarshal([]byte(jsonStr), &payload); err == nil && strings.TrimSpace(payload.Summary.English) != "" {
			return structuredResult(payload)
		}
	}
	return fallbackResult(raw)
}

func structuredResult(p analysisPayload) *AnalysisResult {
	r := &AnalysisResult{
		Source:              models.InsightSourceStructured,
		Summary:             p.Summary,
		KeyFindings:         p.KeyFindings,
		AbnormalValues:      p.AbnormalValues,
		DoctorQuestions:     p.DoctorQuestions,
		Recommendations:     p.Recommendations,
		RiskFactors:         p.RiskFactors,
		FollowUpSuggestions: p.FollowUpSuggestions,
		Confidence:          p.Confidence,
		Disclaimers:         p.Disclaimers,
	}
	applyDefaults(r, 85)
	return r
}

func fallbackResult(raw string) *AnalysisResult {
	summary := strings.TrimSpace(raw)
	if runes := []rune(summary); len(runes) > fallbackSummaryLimit {
		summary = string(runes[:fallbackSummaryLimit])
	}
	if summary == "" {
		summary = "The analysis service returned an empty response for this report."
	}
	r := &AnalysisResult{
		Source: models.InsightSourceFallback,
		Summary: models.Bilingual{
			English: summary,
			Urdu:    "Report ka structured tajzia mumkin nahi ho saka. Tafseel ke liye English summary parhein aur apne doctor se rujoo karein.",
		},
		DoctorQuestions: []models.DoctorQuestion{{
			Question: models.Bilingual{
				English: "Can you walk me through what this report means for my health?",
				Urdu:    "Kya aap mujhe batayenge ke is report ka meri sehat ke liye kya matlab hai?",
			},
			Category: "general",
			Priority: "medium",
		}},
		Confidence: 70,
	}
	applyDefaults(r, 70)
	return r
}

func applyDefaults(r *AnalysisResult, defaultConfidence int) {
	if r.KeyFindings == nil {
		r.KeyFindings = []models.KeyFinding{}
	}
	if r.AbnormalValues == nil {
		r.AbnormalValues = []models.AbnormalValue{}
	}
	if r.DoctorQuestions == nil {
		r.DoctorQuestions = []models.DoctorQuestion{}
	}
	if r.Recommendations.Lifestyle == nil {
		r.Recommendations.Lifestyle = []models.LifestyleRecommendation{}
	}
	if r.Recommendations.Medical == nil {
		r.Recommendations.Medical = []models.MedicalRecommendation{}
	}
	if r.RiskFactors == nil {
		r.RiskFactors = []string{}
	}
	if r.FollowUpSuggestions == nil {
		r.FollowUpSuggestions = []string{}
	}
	if r.Confidence <= 0 || r.Confidence > 100 {
		r.Confidence = defaultConfidence
	}
	d := models.DefaultDisclaimers()
	if r.Disclaimers.English == "" {
		r.Disclaimers.English = d.English
	}
	if r.Disclaimers.Urdu == "" {
		r.Disclaimers.Urdu = d.Urdu
	}
}

// extractJSONObject returns the first balanced top-level JSON object in
// s, brace-matching while respecting string literals and escapes.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
