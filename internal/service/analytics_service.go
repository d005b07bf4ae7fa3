package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	"github.com/yegara-dev/community-api/pkg/cache"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/export"
)

type analyticsRepository interface {
	CountReports(ctx context.Context, woredaPattern string, from, to time.Time) (total, resolved int, err error)
	CountByStatus(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.StatusCount, error)
	CountByCategory(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.CategoryCount, error)
	MonthlyTrend(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.MonthlyTrend, error)
	UserRoleStats(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.RoleCount, error)
	WoredaPerformance(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.WoredaPerformance, error)
	DepartmentPerformance(ctx context.Context, woredaPattern string, from, to time.Time) ([]models.DepartmentPerformance, error)
	RecentReports(ctx context.Context, woredaPattern string, n int) ([]models.Report, error)
	CountReportsSince(ctx context.Context, woredaPattern string, since time.Time) (int, error)
	CountPendingReports(ctx context.Context, woredaPattern string) (int, error)
	CountUsersActiveSince(ctx context.Context, woredaPattern string, since time.Time) (int, error)
	ExportReports(ctx context.Context, woredaPattern string) ([]models.Report, error)
	ExportUsers(ctx context.Context, woredaPattern string) ([]models.User, error)
	ExportEvents(ctx context.Context, woredaPattern string) ([]models.Event, error)
	SaveSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error
}

// ExportFormat selects the analytics export encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
)

// ExportSubject selects the dataset behind an analytics export.
type ExportSubject string

const (
	ExportSummary ExportSubject = "summary"
	ExportReports ExportSubject = "reports"
	ExportUsers   ExportSubject = "users"
	ExportEvents  ExportSubject = "events"
)

// AnalyticsService aggregates reporting activity into dashboards, persisted
// snapshots and exports.
type AnalyticsService struct {
	repo    analyticsRepository
	cache   *cache.Store
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService
	logger  *zap.Logger

	realtimeTTL time.Duration
}

// NewAnalyticsService constructs an AnalyticsService instance. metrics may be
// nil.
func NewAnalyticsService(repo analyticsRepository, cacheStore *cache.Store, metrics *MetricsService, logger *zap.Logger, realtimeTTL time.Duration) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if realtimeTTL <= 0 {
		realtimeTTL = 30 * time.Second
	}
	return &AnalyticsService{
		repo:        repo,
		cache:       cacheStore,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		metrics:     metrics,
		logger:      logger,
		realtimeTTL: realtimeTTL,
	}
}

// Generate produces the full analytics report for the actor's scope over
// the named period, optionally narrowed to one district. The aggregates run
// concurrently; the assembled result is persisted as a snapshot before being
// returned. A snapshot write failure is logged but does not fail the request.
func (s *AnalyticsService) Generate(ctx context.Context, actor *models.User, rawPeriod, districtFilter string) (*models.AnalyticsReport, error) {
	woredaPattern, err := s.scopePattern(actor, districtFilter)
	if err != nil {
		return nil, err
	}

	period := models.NormalizePeriod(rawPeriod)
	end := time.Now().UTC()
	start := period.WindowStart(end)

	report := &models.AnalyticsReport{}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(7)
	go func() {
		defer wg.Done()
		total, resolved, err := s.repo.CountReports(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		active, err := s.repo.CountUsersActiveSince(ctx, woredaPattern, start)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.Summary = models.AnalyticsSummary{
			TotalReports:    total,
			ResolvedReports: resolved,
			ResolutionRate:  resolutionRate(resolved, total),
			ActiveUsers:     active,
		}
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		counts, err := s.repo.CountByStatus(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.ReportsByStatus = counts
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		counts, err := s.repo.CountByCategory(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.ReportsByCategory = counts
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		trend, err := s.repo.MonthlyTrend(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.TrendData = trend
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		stats, err := s.repo.UserRoleStats(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		mu.Lock()
		report.UserStats = stats
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		rows, err := s.repo.WoredaPerformance(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		for i := range rows {
			rows[i].ResolutionRate = resolutionRate(rows[i].ResolvedReports, rows[i].TotalReports)
		}
		mu.Lock()
		report.WoredaPerformance = rows
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		rows, err := s.repo.DepartmentPerformance(ctx, woredaPattern, start, end)
		if err != nil {
			fail(err)
			return
		}
		for i := range rows {
			rows[i].ResolutionRate = resolutionRate(rows[i].ResolvedReports, rows[i].TotalReports)
		}
		mu.Lock()
		report.DepartmentPerformance = rows
		mu.Unlock()
	}()
	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("aggregate analytics: %w", firstErr)
	}

	recent, err := s.repo.RecentReports(ctx, woredaPattern, 10)
	if err != nil {
		return nil, fmt.Errorf("recent reports: %w", err)
	}
	report.RecentReports = recent

	s.persistSnapshot(ctx, actor, period, report)
	return report, nil
}

// Realtime returns live counters for the actor's scope, cached briefly so
// dashboard polling does not hammer the database.
func (s *AnalyticsService) Realtime(ctx context.Context, actor *models.User) (*models.RealtimeStats, error) {
	woredaPattern, err := s.scopePattern(actor, "")
	if err != nil {
		return nil, err
	}

	cacheKey := "analytics:realtime:" + actor.Woreda
	if actor.Role == models.RoleSubcityAdmin {
		cacheKey = "analytics:realtime:all"
	}

	var cached models.RealtimeStats
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	} else if err != appErrors.ErrCacheMiss {
		s.logger.Warn("realtime cache read failed", zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	lastHour, err := s.repo.CountReportsSince(ctx, woredaPattern, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	today, err := s.repo.CountReportsSince(ctx, woredaPattern, midnight)
	if err != nil {
		return nil, err
	}
	activeToday, err := s.repo.CountUsersActiveSince(ctx, woredaPattern, midnight)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountPendingReports(ctx, woredaPattern)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentReports(ctx, woredaPattern, 5)
	if err != nil {
		return nil, err
	}

	stats := &models.RealtimeStats{
		ReportsLastHour:  lastHour,
		ReportsToday:     today,
		ActiveUsersToday: activeToday,
		PendingReports:   pending,
		RecentActivities: recent,
		Timestamp:        now,
	}
	if err := s.cache.Set(ctx, cacheKey, stats, s.realtimeTTL); err != nil {
		s.logger.Warn("realtime cache write failed", zap.Error(err))
	}
	return stats, nil
}

// Export renders the selected dataset in the requested format. The summary
// subject exports the aggregated report; reports, users and events export the
// raw rows in the actor's scope.
func (s *AnalyticsService) Export(ctx context.Context, actor *models.User, rawPeriod, districtFilter string, subject ExportSubject, format ExportFormat) ([]byte, string, error) {
	if subject == "" {
		subject = ExportSummary
	}
	if subject == ExportSummary {
		report, err := s.Generate(ctx, actor, rawPeriod, districtFilter)
		if err != nil {
			return nil, "", err
		}
		return s.render(report, exportDataset(report), "Community Analytics Report", format)
	}

	woredaPattern, err := s.scopePattern(actor, districtFilter)
	if err != nil {
		return nil, "", err
	}

	switch subject {
	case ExportReports:
		reports, err := s.repo.ExportReports(ctx, woredaPattern)
		if err != nil {
			return nil, "", err
		}
		return s.render(reports, reportDataset(reports), "Reports Export", format)

	case ExportUsers:
		users, err := s.repo.ExportUsers(ctx, woredaPattern)
		if err != nil {
			return nil, "", err
		}
		return s.render(users, userDataset(users), "Users Export", format)

	case ExportEvents:
		events, err := s.repo.ExportEvents(ctx, woredaPattern)
		if err != nil {
			return nil, "", err
		}
		return s.render(events, eventDataset(events), "Events Export", format)
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %q", subject))
}

func (s *AnalyticsService) render(raw interface{}, dataset export.Dataset, title string, format ExportFormat) ([]byte, string, error) {
	switch format {
	case ExportJSON, "":
		payload, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal analytics export: %w", err)
		}
		return payload, "application/json", nil

	case ExportCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", fmt.Errorf("render csv export: %w", err)
		}
		return payload, "text/csv", nil

	case ExportPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", fmt.Errorf("render pdf export: %w", err)
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}

// scopePattern resolves the fuzzy district bound for the actor. Officers and
// residents have no analytics access. District admins stay bound to their own
// district; unscoped admins may narrow to one district, with "all" (or blank)
// disabling the restriction.
func (s *AnalyticsService) scopePattern(actor *models.User, requested string) (string, error) {
	if actor.Role != models.RoleWoredaAdmin && actor.Role != models.RoleSubcityAdmin {
		return "", appErrors.Clone(appErrors.ErrForbidden, "not authorized to access analytics")
	}
	sc, err := scope.ForList(actor, scope.KindReports)
	if err != nil {
		return "", err
	}
	if sc.WoredaPattern != "" {
		return sc.WoredaPattern, nil
	}
	if requested == "" || strings.EqualFold(requested, "all") {
		return "", nil
	}
	return woreda.MatchPattern(requested), nil
}

func (s *AnalyticsService) persistSnapshot(ctx context.Context, actor *models.User, period models.AnalyticsPeriod, report *models.AnalyticsReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("failed to marshal analytics snapshot", zap.Error(err))
		return
	}
	snapshot := &models.AnalyticsSnapshot{
		Period:  period,
		Woreda:  actor.Woreda,
		Payload: payload,
	}
	if actor.Role == models.RoleSubcityAdmin {
		snapshot.Woreda = ""
	}
	if err := s.repo.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist analytics snapshot", zap.Error(err))
	}
}

// resolutionRate is resolved/total as a percentage rounded to two decimals,
// zero when there are no reports.
func resolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(resolved)/float64(total)*10000) / 100
}

// exportDataset flattens the per-district rollup into a tabular dataset for
// CSV and PDF rendering.
func exportDataset(report *models.AnalyticsReport) export.Dataset {
	headers := []string{"Woreda", "Total Reports", "Resolved", "Resolution Rate (%)", "Avg Resolution Days"}
	rows := make([]map[string]string, 0, len(report.WoredaPerformance)+1)
	for _, row := range report.WoredaPerformance {
		avg := ""
		if row.AverageResolutionDays != nil {
			avg = strconv.FormatFloat(*row.AverageResolutionDays, 'f', 1, 64)
		}
		rows = append(rows, map[string]string{
			"Woreda":              row.Woreda,
			"Total Reports":       strconv.Itoa(row.TotalReports),
			"Resolved":            strconv.Itoa(row.ResolvedReports),
			"Resolution Rate (%)": strconv.FormatFloat(row.ResolutionRate, 'f', 2, 64),
			"Avg Resolution Days": avg,
		})
	}
	rows = append(rows, map[string]string{
		"Woreda":              "TOTAL",
		"Total Reports":       strconv.Itoa(report.Summary.TotalReports),
		"Resolved":            strconv.Itoa(report.Summary.ResolvedReports),
		"Resolution Rate (%)": strconv.FormatFloat(report.Summary.ResolutionRate, 'f', 2, 64),
		"Avg Resolution Days": "",
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

func reportDataset(reports []models.Report) export.Dataset {
	headers := []string{"Title", "Category", "Department", "Status", "Priority", "Woreda", "Created", "Resolved"}
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		resolved := ""
		if r.ResolvedAt != nil {
			resolved = r.ResolvedAt.UTC().Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Title":      r.Title,
			"Category":   string(r.Category),
			"Department": string(r.Department),
			"Status":     string(r.Status),
			"Priority":   string(r.Priority),
			"Woreda":     r.Woreda,
			"Created":    r.CreatedAt.UTC().Format("2006-01-02"),
			"Resolved":   resolved,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func userDataset(users []models.User) export.Dataset {
	headers := []string{"Full Name", "Email", "Role", "Woreda", "Department", "Active", "Registered"}
	rows := make([]map[string]string, 0, len(users))
	for _, u := range users {
		department := ""
		if u.Department != nil {
			department = string(*u.Department)
		}
		rows = append(rows, map[string]string{
			"Full Name":  u.FullName,
			"Email":      u.Email,
			"Role":       string(u.Role),
			"Woreda":     u.Woreda,
			"Department": department,
			"Active":     strconv.FormatBool(u.IsActive),
			"Registered": u.CreatedAt.UTC().Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func eventDataset(events []models.Event) export.Dataset {
	headers := []string{"Title", "Date", "Location", "Woreda", "Status", "Attendees"}
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, map[string]string{
			"Title":     e.Title,
			"Date":      e.Date.UTC().Format("2006-01-02 15:04"),
			"Location":  e.Location,
			"Woreda":    e.Woreda,
			"Status":    string(e.Status),
			"Attendees": strconv.Itoa(e.AttendeeCount),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
