package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/group"
)

var (
	groupColumns      = []string{"id", "course_id", "name", "max_members", "created_at", "updated_at"}
	groupOrderColumns = map[string]string{
		"name":        "name",
		"max_members": "max_members",
		"created_at":  "created_at",
	}
)

type groupRow struct {
	ID         string    `db:"id"`
	CourseID   string    `db:"course_id"`
	Name       string    `db:"name"`
	MaxMembers int       `db:"max_members"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r groupRow) toGroup(memberIDs []string) group.Group {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	return group.Group{
		ID:         r.ID,
		CourseID:   r.CourseID,
		Name:       r.Name,
		MaxMembers: r.MaxMembers,
		MemberIDs:  memberIDs,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) members(ctx context.Context, q sqlx.QueryerContext, groupIDs ...string) (map[string][]string, error) {
	res := make(map[string][]string, len(groupIDs))
	if len(groupIDs) == 0 {
		return res, nil
	}
	b := psql.Select("group_id AS owner_id", "user_id").
		From("group_members").
		Where(sq.Eq{"group_id": groupIDs}).
		OrderBy("joined_at ASC", "user_id ASC")

	var rows []memberRow
	if err := selectRows(ctx, q, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying group members")
	}
	for _, r := range rows {
		res[r.OwnerID] = append(res[r.OwnerID], r.UserID)
	}
	return res, nil
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	b := psql.Insert("groups").Columns(groupColumns...).
		Values(g.ID, g.CourseID, g.Name, g.MaxMembers, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if _, err := exec(ctx, repo.db, b); err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return g, nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter, ordering ...core.DBOrdering) ([]group.Group, error) {
	b := psql.Select(groupColumns...).From("groups")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if filter.MemberID != "" {
		b = b.Where(sq.Expr("id IN (SELECT group_id FROM group_members WHERE user_id = ?)", filter.MemberID))
	}
	if filter.Search != "" {
		b = b.Where(sq.ILike{"name": "%" + filter.Search + "%"})
	}
	b = b.OrderBy(orderBy(ordering, groupOrderColumns)...)

	var rows []groupRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	members, err := repo.members(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup(members[r.ID]))
	}
	return groups, nil
}

func (repo *groupRepository) get(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (group.Group, error) {
	b := psql.Select(groupColumns...).From("groups").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	var r groupRow
	if err := getRow(ctx, q, &r, b); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "finding group")
	}
	members, err := repo.members(ctx, q, id)
	if err != nil {
		return group.Group{}, err
	}
	return r.toGroup(members[id]), nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	return repo.get(ctx, repo.db, id, false)
}

func (repo *groupRepository) locked(ctx context.Context, id string, fn func(tx *sqlx.Tx, g group.Group) error) (group.Group, error) {
	var res group.Group
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		g, err := repo.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(tx, g); err != nil {
			return err
		}
		res, err = repo.get(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return group.Group{}, err
	}
	return res, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, id string, update func(*group.Group) error) (group.Group, error) {
	return repo.locked(ctx, id, func(tx *sqlx.Tx, g group.Group) error {
		if err := update(&g); err != nil {
			return err
		}
		b := psql.Update("groups").
			Set("course_id", g.CourseID).
			Set("name", g.Name).
			Set("max_members", g.MaxMembers).
			Set("updated_at", g.UpdatedAt.UTC()).
			Where(sq.Eq{"id": id})
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "updating group")
	})
}

func (repo *groupRepository) AddMember(ctx context.Context, groupID, userID string, check func(group.Group) error) (group.Group, error) {
	return repo.locked(ctx, groupID, func(tx *sqlx.Tx, g group.Group) error {
		if err := check(g); err != nil {
			return err
		}
		b := psql.Insert("group_members").
			Columns("group_id", "user_id", "joined_at").
			Values(groupID, userID, core.NowFunc())
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "inserting group member")
	})
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string, check func(group.Group) error) (group.Group, error) {
	return repo.locked(ctx, groupID, func(tx *sqlx.Tx, g group.Group) error {
		if err := check(g); err != nil {
			return err
		}
		b := psql.Delete("group_members").Where(sq.Eq{"group_id": groupID, "user_id": userID})
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "deleting group member")
	})
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("groups").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if n == 0 {
		return group.ErrNotFound
	}
	return nil
}
