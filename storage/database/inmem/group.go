package inmemdb

import (
	"context"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/group"
)

type groupRepository struct {
	db *groupTable
}

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db.group}
}

func cloneGroup(g group.Group) group.Group {
	g.MemberIDs = copyStrings(g.MemberIDs)
	if g.MemberIDs == nil {
		g.MemberIDs = []string{}
	}
	g.Members = nil
	return g
}

func (repo *groupRepository) CreateGroup(_ context.Context, g group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g = cloneGroup(g)
	repo.db.table[g.ID] = &g
	return cloneGroup(g), nil
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter group.QueryFilter, ordering ...core.DBOrdering) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.table))
	for _, g := range repo.db.table {
		if filter.CourseIDs != nil && !core.StringsContain(filter.CourseIDs, g.CourseID) {
			continue
		}
		if filter.MemberID != "" && !g.HasMember(filter.MemberID) {
			continue
		}
		if filter.Search != "" && !containsFold(g.Name, filter.Search) {
			continue
		}
		groups = append(groups, cloneGroup(*g))
	}

	orderBy(groups, ordering, func(g group.Group, field string) interface{} {
		switch field {
		case "max_members":
			return g.MaxMembers
		case "created_at":
			return g.CreatedAt
		default:
			return g.Name
		}
	}, func(g group.Group) string { return g.ID })
	return groups, nil
}

func (repo *groupRepository) GetGroupByID(_ context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.table[id]; ok {
		return cloneGroup(*g), nil
	}
	return group.Group{}, group.ErrNotFound
}

// modify runs fn on a copy of the group under the table write lock and stores the copy if fn succeeds.
func (repo *groupRepository) modify(id string, fn func(*group.Group) error) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	g := cloneGroup(*orig)
	if err := fn(&g); err != nil {
		return group.Group{}, err
	}
	g = cloneGroup(g)
	repo.db.table[id] = &g
	return cloneGroup(g), nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, id string, update func(*group.Group) error) (group.Group, error) {
	return repo.modify(id, func(g *group.Group) error {
		members := g.MemberIDs
		if err := update(g); err != nil {
			return err
		}
		g.ID = id
		g.MemberIDs = members
		return nil
	})
}

func (repo *groupRepository) AddMember(_ context.Context, groupID, userID string, check func(group.Group) error) (group.Group, error) {
	return repo.modify(groupID, func(g *group.Group) error {
		if err := check(*g); err != nil {
			return err
		}
		g.MemberIDs = append(g.MemberIDs, userID)
		return nil
	})
}

func (repo *groupRepository) RemoveMember(_ context.Context, groupID, userID string, check func(group.Group) error) (group.Group, error) {
	return repo.modify(groupID, func(g *group.Group) error {
		if err := check(*g); err != nil {
			return err
		}
		g.MemberIDs = removeString(g.MemberIDs, userID)
		return nil
	})
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return group.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
