package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"sehatlog-server/internal/ai"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
)

// maxConcurrentAnalyses bounds the fan-out for one upload.
const maxConcurrentAnalyses = 3

// analyzableMimeTypes are the file types worth sending to the model.
var analyzableMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// AnalysisService runs the post-upload analysis pipeline: one model
// call per stored file, joined all-settled, then a single status
// transition on the report plus one Insight per successful result.
type AnalysisService struct {
	db  *gorm.DB
	ai  ai.Client
	log *logger.Logger

	// wg lets tests wait for scheduled pipelines; production callers
	// never block on it.
	wg sync.WaitGroup
}

func NewAnalysisService(db *gorm.DB, aiClient ai.Client, log *logger.Logger) *AnalysisService {
	return &AnalysisService{
		db:  db,
		ai:  aiClient,
		log: log.With("service", "AnalysisService"),
	}
}

// Analyzable reports whether a stored file is eligible for analysis.
func Analyzable(mimeType string) bool {
	return analyzableMimeTypes[mimeType]
}

// Schedule starts the pipeline for a report without blocking the
// caller. The HTTP response has typically already been written when the
// work begins; clients observe progress by polling the report status.
func (s *AnalysisService) Schedule(report *models.MedicalReport, files []models.StoredFile) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), report, files)
	}()
}

// Wait blocks until every scheduled pipeline has settled. Tests use it;
// main calls it during shutdown so in-flight analyses finish.
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

func (s *AnalysisService) run(ctx context.Context, report *models.MedicalReport, files []models.StoredFile) {
	log := s.log.With("reportId", report.ID, "userId", report.UserID)

	eligible := make([]models.StoredFile, 0, len(files))
	for _, f := range files {
		if Analyzable(f.MimeType) {
			eligible = append(eligible, f)
		}
	}
	if len(eligible) == 0 {
		log.Info("no analyzable files in report")
		return
	}

	if err := s.db.Model(&models.MedicalReport{}).
		Where("id = ?", report.ID).
		Update("status", models.ReportStatusAnalyzing).Error; err != nil {
		log.Error("failed to mark report analyzing", "error", err)
	}

	// All-settled join: each worker converts its own failure into a nil
	// slot and returns nil, so Wait never short-circuits siblings.
	results := make([]*ai.AnalysisResult, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAnalyses)
	for i, f := range eligible {
		i, f := i, f
		g.Go(func() error {
			res, err := s.ai.Analyze(gctx, ai.AnalysisRequest{
				FileURL:    f.URL,
				MimeType:   f.MimeType,
				ReportType: report.ReportType,
			})
			if err != nil {
				log.Warn("analysis failed for file", "fileId", f.ID, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	created := 0
	for _, res := range results {
		if res == nil || strings.TrimSpace(res.Summary.English) == "" {
			continue
		}
		insight := models.Insight{
			UserID:              report.UserID,
			ReportID:            report.ID,
			Summary:             res.Summary,
			KeyFindings:         res.KeyFindings,
			AbnormalValues:      res.AbnormalValues,
			DoctorQuestions:     res.DoctorQuestions,
			Recommendations:     res.Recommendations,
			RiskFactors:         res.RiskFactors,
			FollowUpSuggestions: res.FollowUpSuggestions,
			Disclaimers:         res.Disclaimers,
			Confidence:          res.Confidence,
			Model:               res.Model,
			ProcessingMS:        res.ProcessingMS,
			Source:              insightSource(res),
		}
		insight.ApplyDefaults()
		if err := s.db.Create(&insight).Error; err != nil {
			log.Error("failed to persist insight", "error", err)
			continue
		}
		created++
	}

	status := models.ReportStatusAnalyzed
	if created == 0 {
		// Every scheduled analysis settled without a usable result.
		status = models.ReportStatusFailed
	}
	if err := s.db.Model(&models.MedicalReport{}).
		Where("id = ?", report.ID).
		Updates(map[string]interface{}{
			"status":         status,
			"analysis_count": created,
			"updated_at":     time.Now(),
		}).Error; err != nil {
		log.Error("failed to finalize report status", "error", err)
		return
	}
	log.Info("analysis pipeline settled", "files", len(eligible), "insights", created, "status", status)
}

func insightSource(res *ai.AnalysisResult) models.InsightSource {
	if res.Source == models.InsightSourceFallback {
		return models.InsightSourceFallback
	}
	return models.InsightSourceStructured
}
