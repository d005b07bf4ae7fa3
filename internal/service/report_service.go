package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	Update(ctx context.Context, report *models.Report) error
	AppendUpdate(ctx context.Context, update *models.ReportUpdate) error
	Delete(ctx context.Context, id string) error
	ListByWoredaPattern(ctx context.Context, pattern, exact string) ([]models.Report, error)
	ListByDepartment(ctx context.Context, department models.Department) ([]models.Report, error)
}

type reportUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

// CreateReportRequest is the resident submission payload.
type CreateReportRequest struct {
	Title       string                `json:"title" validate:"required"`
	Description string                `json:"description" validate:"required"`
	Category    models.ReportCategory `json:"category" validate:"required"`
	Priority    models.ReportPriority `json:"priority"`
	Woreda      string                `json:"woreda"`
	Latitude    *float64              `json:"latitude"`
	Longitude   *float64              `json:"longitude"`
	Address     *string               `json:"address"`
	Images      []string              `json:"images"`
}

// UpdateReportRequest carries a partial report edit. Status changes append a
// history entry; other fields are overwritten in place.
type UpdateReportRequest struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Category        *models.ReportCategory `json:"category"`
	Status          *models.ReportStatus   `json:"status"`
	Priority        *models.ReportPriority `json:"priority"`
	AssignedOfficer *string                `json:"assignedOfficer"`
	Message         string                 `json:"message"`
}

// ReportService manages the issue report lifecycle from submission to
// resolution.
type ReportService struct {
	repo      reportRepository
	users     reportUserRepository
	notifier  notificationDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService instance. metrics may be nil.
func NewReportService(repo reportRepository, users reportUserRepository, notifier notificationDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{repo: repo, users: users, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// Create files a new report for a resident. The responsible department is
// derived from the category; the submitter never chooses it. An initial
// history entry records the submission.
func (s *ReportService) Create(ctx context.Context, actor *models.User, req CreateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	reportWoreda := req.Woreda
	if reportWoreda == "" {
		reportWoreda = actor.Woreda
	}
	if reportWoreda == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "woreda is required")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	report := &models.Report{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Department:  models.DepartmentForCategory(req.Category),
		Status:      models.StatusPending,
		Priority:    priority,
		ResidentID:  actor.ID,
		Woreda:      reportWoreda,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
		Images:      req.Images,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	initial := &models.ReportUpdate{
		ReportID:  report.ID,
		Status:    models.StatusPending,
		Message:   "Report submitted",
		UpdatedBy: actor.ID,
	}
	if err := s.repo.AppendUpdate(ctx, initial); err != nil {
		s.logger.Warn("failed to record initial report update", zap.Error(err))
	} else {
		report.Updates = append(report.Updates, *initial)
	}

	s.notifyDepartmentOfficers(ctx, report)
	s.metrics.RecordReportCreated(string(report.Department))

	s.logger.Info("report created",
		zap.String("report_id", report.ID),
		zap.String("department", string(report.Department)),
		zap.String("woreda", report.Woreda))
	return report, nil
}

// List returns the reports visible to the actor: residents their own,
// officers their department, woreda admins their district, sub-city admins
// everything.
func (s *ReportService) List(ctx context.Context, actor *models.User, q models.ListQuery) ([]models.Report, int, error) {
	sc, err := scope.ForList(actor, scope.KindReports)
	if err != nil {
		return nil, 0, err
	}

	filter := models.ReportFilter{Query: q}
	filter.ResidentID = sc.OwnerID
	filter.Department = sc.Department
	filter.Woreda = sc.Woreda
	filter.WoredaPattern = sc.WoredaPattern

	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListMine returns the actor's own reports.
func (s *ReportService) ListMine(ctx context.Context, actor *models.User, q models.ListQuery) ([]models.Report, int, error) {
	reports, total, err := s.repo.List(ctx, models.ReportFilter{ResidentID: actor.ID, Query: q})
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// Get returns one report with its update history, subject to visibility.
func (s *ReportService) Get(ctx context.Context, actor *models.User, id string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	if err := scope.CanReadReport(actor, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListByWoreda returns reports of one district, fuzzy-matched on the woreda
// name. Woreda admins may only query their own district.
func (s *ReportService) ListByWoreda(ctx context.Context, actor *models.User, target string) ([]models.Report, error) {
	if err := scope.CanAccessWoreda(actor, target); err != nil {
		return nil, err
	}
	reports, err := s.repo.ListByWoredaPattern(ctx, woreda.MatchPattern(target), target)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// ListByDepartment returns reports routed to one department. Officers may
// only query their own department.
func (s *ReportService) ListByDepartment(ctx context.Context, actor *models.User, target models.Department) ([]models.Report, error) {
	if err := scope.CanAccessDepartment(actor, target); err != nil {
		return nil, err
	}
	reports, err := s.repo.ListByDepartment(ctx, target)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Update applies a partial edit. Terminal reports reject every further
// mutation. A category change re-derives the department; a status change
// appends a history entry, stamps resolvedAt exactly once on resolution and
// notifies the resident.
func (s *ReportService) Update(ctx context.Context, actor *models.User, id string, req UpdateReportRequest) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	if err := scope.CanMutateReport(actor, report); err != nil {
		return nil, err
	}
	if report.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("report is already %s and cannot be modified", report.Status))
	}

	if actor.Role == models.RoleResident {
		// Residents may amend the narrative only; triage fields are the
		// officer's.
		if req.Status != nil || req.Priority != nil || req.AssignedOfficer != nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to change report triage fields")
		}
	}

	if req.Title != nil {
		report.Title = *req.Title
	}
	if req.Description != nil {
		report.Description = *req.Description
	}
	if req.Category != nil {
		report.Category = *req.Category
		report.Department = models.DepartmentForCategory(*req.Category)
	}
	if req.Priority != nil {
		report.Priority = *req.Priority
	}
	if req.AssignedOfficer != nil {
		report.AssignedOfficer = req.AssignedOfficer
	}

	statusChanged := req.Status != nil && *req.Status != report.Status
	if statusChanged {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report status")
		}
		report.Status = *req.Status
		if report.Status == models.StatusResolved && report.ResolvedAt == nil {
			now := time.Now().UTC()
			report.ResolvedAt = &now
		}
	}

	if err := s.repo.Update(ctx, report); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}

	if statusChanged {
		message := req.Message
		if message == "" {
			message = fmt.Sprintf("Status changed to %s", report.Status)
		}
		entry := &models.ReportUpdate{
			ReportID:  report.ID,
			Status:    report.Status,
			Message:   message,
			UpdatedBy: actor.ID,
		}
		if err := s.repo.AppendUpdate(ctx, entry); err != nil {
			s.logger.Warn("failed to record report update", zap.Error(err))
		} else {
			report.Updates = append(report.Updates, *entry)
		}
		s.notifyResident(ctx, report, message)
	}

	return report, nil
}

// AddUpdate appends a progress note. A changed status moves the report
// through the lifecycle rules first; otherwise the note is recorded at the
// report's current status. Terminal reports reject further updates.
func (s *ReportService) AddUpdate(ctx context.Context, actor *models.User, id string, status models.ReportStatus, message string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	if err := scope.CanMutateReport(actor, report); err != nil {
		return nil, err
	}

	if status != "" && status != report.Status {
		return s.Update(ctx, actor, id, UpdateReportRequest{Status: &status, Message: message})
	}

	if report.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("report is already %s and cannot be modified", report.Status))
	}
	if message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "update message is required")
	}

	entry := &models.ReportUpdate{
		ReportID:  report.ID,
		Status:    report.Status,
		Message:   message,
		UpdatedBy: actor.ID,
	}
	if err := s.repo.AppendUpdate(ctx, entry); err != nil {
		return nil, fmt.Errorf("append report update: %w", err)
	}
	report.Updates = append(report.Updates, *entry)
	return report, nil
}

// Delete removes a report together with its history. Residents may delete
// their own reports; admins anything in their scope.
func (s *ReportService) Delete(ctx context.Context, actor *models.User, id string) error {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return fmt.Errorf("find report by id: %w", err)
	}
	if err := scope.CanMutateReport(actor, report); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// notifyResident tells the submitting resident about a status change.
func (s *ReportService) notifyResident(ctx context.Context, report *models.Report, message string) {
	if s.notifier == nil {
		return
	}
	resident, err := s.users.FindByID(ctx, report.ResidentID)
	if err != nil {
		s.logger.Warn("failed to resolve report resident", zap.Error(err))
		return
	}
	s.notifier.Dispatch(models.NotificationIntent{
		Recipients: []models.Recipient{{UserID: resident.ID, Email: resident.Email}},
		Subject:    fmt.Sprintf("Update on your report: %s", report.Title),
		HTMLBody: fmt.Sprintf("<p>Your report <b>%s</b> is now <b>%s</b>.</p><p>%s</p>",
			report.Title, report.Status, message),
		Push: &models.PushEvent{
			Type:       "report_status",
			Message:    message,
			ResourceID: report.ID,
		},
	})
}

// notifyDepartmentOfficers tells officers of the responsible department in
// the report's woreda that a new report arrived.
func (s *ReportService) notifyDepartmentOfficers(ctx context.Context, report *models.Report) {
	if s.notifier == nil {
		return
	}
	role := models.RoleOfficer
	officers, err := s.users.List(ctx, models.UserFilter{
		Role:          &role,
		Department:    &report.Department,
		WoredaPattern: woreda.MatchPattern(report.Woreda),
		ActiveOnly:    true,
	})
	if err != nil {
		s.logger.Warn("failed to resolve department officers", zap.Error(err))
		return
	}
	if len(officers) == 0 {
		return
	}

	recipients := make([]models.Recipient, 0, len(officers))
	for _, o := range officers {
		recipients = append(recipients, models.Recipient{UserID: o.ID, Email: o.Email})
	}
	s.notifier.Dispatch(models.NotificationIntent{
		Recipients: recipients,
		Subject:    fmt.Sprintf("New %s report in %s", report.Category, report.Woreda),
		HTMLBody: fmt.Sprintf("<p>A new report was filed in your department.</p><p><b>%s</b></p><p>%s</p>",
			report.Title, report.Description),
		Push: &models.PushEvent{
			Type:       "report_created",
			Message:    fmt.Sprintf("New report: %s", report.Title),
			ResourceID: report.ID,
		},
	})
}
