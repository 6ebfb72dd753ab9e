package ai

import (
	"strings"

	"sehatlog-server/internal/models"
)

// basePrompt asks for the exact JSON shape ParseResponse unmarshals.
// Urdu here means Roman Urdu (Urdu written in Latin script) so the text
// renders everywhere without font support.
const basePrompt = `You are a medical report explainer for patients in Pakistan. Read the attached medical report and explain it in simple language, bilingually: plain English and Roman Urdu (Urdu in Latin script).

Respond with a single JSON object and nothing else, using exactly this shape:
{
  "summary": {"english": "...", "urdu": "..."},
  "keyFindings": [{"parameter": "...", "value": "...", "unit": "...", "normalRange": "...", "status": "normal|high|low|critical", "explanation": {"english": "...", "urdu": "..."}}],
  "abnormalValues": [{"parameter": "...", "value": "...", "severity": "mild|moderate|severe|critical", "explanation": {"english": "...", "urdu": "..."}, "recommendation": {"english": "...", "urdu": "..."}}],
  "doctorQuestions": [{"question": {"english": "...", "urdu": "..."}, "category": "general|treatment|lifestyle|follow_up|medication", "priority": "low|medium|high"}],
  "recommendations": {
    "lifestyle": [{"type": "diet|exercise|sleep|hydration|stress|habit", "suggestion": {"english": "...", "urdu": "..."}, "priority": "low|medium|high"}],
    "medical": [{"suggestion": {"english": "...", "urdu": "..."}, "urgency": "routine|soon|urgent"}]
  },
  "riskFactors": ["..."],
  "followUpSuggestions": ["..."],
  "confidence": 85,
  "disclaimers": {"english": "...", "urdu": "..."}
}

Rules: never diagnose; explain what the values mean and when to see a doctor. Keep every explanation short and free of jargon. Use the same units the report uses. If the report is unreadable, say so in the summary and set confidence below 50.`

// reportTypeGuidance adds report-specific instructions, keyed by report
// type with a generic fallback.
var reportTypeGuidance = map[models.ReportType]string{
	models.ReportTypeBloodTest: `This is a blood test. Walk through each measured parameter (CBC, sugar, lipids, liver, kidney, thyroid as present), compare against the printed reference range, and flag anything outside it.`,
	models.ReportTypeUrineTest: `This is a urine test. Cover physical, chemical and microscopic findings; explain what protein, glucose, ketones, blood or pus cells in urine suggest.`,
	models.ReportTypeXRay:      `This is an X-ray report. Summarize the radiologist's impression in plain words; explain any fracture, opacity, or effusion mentioned and its usual significance.`,
	models.ReportTypeMRI:       `This is an MRI report. Translate the radiological findings into everyday language; distinguish incidental findings from ones the impression highlights.`,
	models.ReportTypeCTScan:    `This is a CT scan report. Translate the radiological findings into everyday language; distinguish incidental findings from ones the impression highlights.`,
	models.ReportTypeUltrasound: `This is an ultrasound report. Explain organ-by-organ findings and whether the impression calls anything abnormal.`,
	models.ReportTypeECG:       `This is an ECG report. Explain rhythm, rate, and any interval or ST findings in plain words, and when such findings need urgent review.`,
	models.ReportTypePrescription: `This is a prescription. List each medicine with its purpose, typical timing with respect to food, and common precautions. Do not change or question the prescribed doses.`,
	models.ReportTypeDischargeSummary: `This is a hospital discharge summary. Explain why the patient was admitted, what was done, and exactly what the follow-up instructions require.`,
}

const genericGuidance = `Identify what kind of medical document this is, then explain its contents and any highlighted findings.`

// BuildPrompt assembles the instruction prompt for one report type.
func BuildPrompt(reportType models.ReportType) string {
	guidance, ok := reportTypeGuidance[reportType]
	if !ok {
		guidance = genericGuidance
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	b.WriteString(guidance)
	return b.String()
}
