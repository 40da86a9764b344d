package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/report"
)

var (
	reportColumns      = []string{"id", "type", "title", "description", "status", "user_id", "created_at", "updated_at"}
	reportOrderColumns = map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"status":     "status",
		"type":       "type",
		"title":      "title",
	}
)

type reportRow struct {
	ID          string      `db:"id"`
	Type        string      `db:"type"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Status      string      `db:"status"`
	UserID      null.String `db:"user_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r reportRow) toReport() report.Report {
	return report.Report{
		ID:          r.ID,
		Type:        r.Type,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		UserID:      r.UserID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type reportRepository struct {
	db *sqlx.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) CreateReport(ctx context.Context, r report.Report) (report.Report, error) {
	b := psql.Insert("reports").Columns(reportColumns...).Values(
		r.ID, r.Type, r.Title, r.Description, r.Status, null.NewString(r.UserID, r.UserID != ""),
		r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return report.Report{}, errors.Wrap(err, "inserting report")
	}
	return r, nil
}

func (repo *reportRepository) QueryReports(ctx context.Context, filter report.QueryFilter, ordering ...core.DBOrdering) ([]report.Report, error) {
	b := psql.Select(reportColumns...).From("reports")
	if len(filter.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Types) > 0 {
		b = b.Where(sq.Eq{"type": filter.Types})
	}
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	b = b.OrderBy(orderBy(ordering, reportOrderColumns)...)

	var rows []reportRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	reports := make([]report.Report, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, r.toReport())
	}
	return reports, nil
}

func (repo *reportRepository) GetReportByID(ctx context.Context, id string) (report.Report, error) {
	var r reportRow
	if err := getRow(ctx, repo.db, &r, psql.Select(reportColumns...).From("reports").Where(sq.Eq{"id": id})); err != nil {
		return report.Report{}, trapNoRowsErr(err, report.ErrNotFound, "finding report")
	}
	return r.toReport(), nil
}

func (repo *reportRepository) UpdateReport(ctx context.Context, r report.Report) (report.Report, error) {
	b := psql.Update("reports").
		Set("title", r.Title).
		Set("description", r.Description).
		Set("status", r.Status).
		Set("updated_at", r.UpdatedAt.UTC()).
		Where(sq.Eq{"id": r.ID})

	n, err := exec(ctx, repo.db, b)
	if err != nil {
		return report.Report{}, errors.Wrap(err, "updating report")
	}
	if n == 0 {
		return report.Report{}, report.ErrNotFound
	}
	return r, nil
}

func (repo *reportRepository) DeleteReport(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("reports").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting report")
	}
	if n == 0 {
		return report.ErrNotFound
	}
	return nil
}
