package inmemdb

import (
	"context"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/report"
)

type reportRepository struct {
	db *reportTable
}

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db.report}
}

func (repo *reportRepository) CreateReport(_ context.Context, r report.Report) (report.Report, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r.Reporter = nil
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *reportRepository) QueryReports(_ context.Context, filter report.QueryFilter, ordering ...core.DBOrdering) ([]report.Report, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reports := make([]report.Report, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !core.StringsContain(filter.Statuses, r.Status) {
			continue
		}
		if len(filter.Types) > 0 && !core.StringsContain(filter.Types, r.Type) {
			continue
		}
		reports = append(reports, *r)
	}

	orderBy(reports, ordering, func(r report.Report, field string) interface{} {
		switch field {
		case "updated_at":
			return r.UpdatedAt
		case "status":
			return r.Status
		case "type":
			return r.Type
		case "title":
			return r.Title
		default:
			return r.CreatedAt
		}
	}, func(r report.Report) string { return r.ID })
	return reports, nil
}

func (repo *reportRepository) GetReportByID(_ context.Context, id string) (report.Report, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return report.Report{}, report.ErrNotFound
}

func (repo *reportRepository) UpdateReport(_ context.Context, r report.Report) (report.Report, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[r.ID]; !ok {
		return report.Report{}, report.ErrNotFound
	}
	r.Reporter = nil
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *reportRepository) DeleteReport(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return report.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
