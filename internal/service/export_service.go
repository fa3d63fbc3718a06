package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/models"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/export"
)

type historyReader interface {
	ListHistory(ctx context.Context, studentID string) ([]models.HistorySummary, error)
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

var historyHeaders = []string{"Reference ID", "Category", "Status", "Submitted", "Completed"}

// HistoryExportService renders history summaries as spreadsheets.
type HistoryExportService struct {
	history historyReader
	logger  *zap.Logger
	now     func() time.Time
}

// NewHistoryExportService constructs the service.
func NewHistoryExportService(history historyReader, logger *zap.Logger) *HistoryExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryExportService{history: history, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Export renders the caller's history. Students get their own rows, the principal gets all.
func (s *HistoryExportService) Export(ctx context.Context, userID string, role models.UserRole, format string) (*ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be xlsx or csv")
	}

	var scope string
	switch role {
	case models.RoleStudent:
		scope = userID
	case models.RolePrincipal:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "history export is available to students and the principal")
	}

	rows, err := s.history.ListHistory(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	content, err := export.RendererFor(f).Render(historyDataset(rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("history exported", zap.String("user_id", userID), zap.Int("rows", len(rows)), zap.String("format", string(f)))

	return &ExportFile{
		Filename:    fmt.Sprintf("permission-history-%s.%s", s.now().Format("20060102"), f),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

func historyDataset(rows []models.HistorySummary) export.Dataset {
	data := export.Dataset{Title: "Permission History", Headers: historyHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, h := range rows {
		completed := ""
		if h.CompletedAt != nil {
			completed = h.CompletedAt.Format("2006-01-02 15:04")
		}
		data.Rows = append(data.Rows, map[string]string{
			"Reference ID": h.ReferenceID,
			"Category":     string(h.Category),
			"Status":       string(h.Status),
			"Submitted":    h.SubmittedAt.Format("2006-01-02 15:04"),
			"Completed":    completed,
		})
	}
	return data
}
