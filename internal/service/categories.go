package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
)

// errDepthExceeded means a parent chain is longer than the configured cap,
// which only happens when parent pointers form a loop.
var errDepthExceeded = errors.New("category tree depth limit exceeded")

// CategoryInput describes a new category.
type CategoryInput struct {
	Owner         repository.Owner
	Name          string
	ParentID      *string
	Description   *string
	IsIncome      bool
	IsExpense     bool
	BudgetMonthly *float64
	BudgetWeekly  *float64
	BudgetYearly  *float64
	SortOrder     int
}

// CategoryPatch changes editable fields; nil leaves a field alone. Moving a
// node goes through Move.
type CategoryPatch struct {
	Name          *string
	Description   *string
	IsIncome      *bool
	IsExpense     *bool
	BudgetMonthly *float64
	BudgetWeekly  *float64
	BudgetYearly  *float64
	IsActive      *bool
	SortOrder     *int
}

// CategoryTreeNode is a category with its active children attached.
type CategoryTreeNode struct {
	repository.Category
	Children []*CategoryTreeNode
}

// CategoryService maintains owner-scoped category trees.
type CategoryService struct {
	DB      *sql.DB
	Options Options
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (repository.Category, error) {
	if in.Owner.IsZero() {
		return repository.Category{}, invalid("owner", "exactly one of user or group is required")
	}
	name, err := validCategoryName(in.Name)
	if err != nil {
		return repository.Category{}, err
	}

	var out repository.Category
	err = inTx(ctx, s.DB, func(q queries) error {
		now := database.Now()
		c := repository.Category{
			ID:            uuid.NewString(),
			Owner:         in.Owner,
			Name:          name,
			Description:   optionalPtr(in.Description),
			Level:         1,
			Path:          name,
			IsIncome:      in.IsIncome,
			IsExpense:     in.IsExpense,
			BudgetMonthly: in.BudgetMonthly,
			BudgetWeekly:  in.BudgetWeekly,
			BudgetYearly:  in.BudgetYearly,
			IsActive:      true,
			SortOrder:     in.SortOrder,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if in.ParentID != nil && *in.ParentID != "" {
			parent, err := q.cats.Get(ctx, *in.ParentID)
			if err != nil {
				return fmt.Errorf("create category: parent lookup: %w", err)
			}
			if parent == nil {
				return notFound("category", *in.ParentID)
			}
			if parent.Owner != in.Owner {
				return invalid("parent_id", "parent belongs to a different owner")
			}
			pid := parent.ID
			c.ParentID = &pid
			c.Level = parent.Level + 1
			c.Path = parent.Path + "/" + name
			if err := s.checkDepth(c.Level); err != nil {
				return err
			}
		}
		if err := s.checkPathFree(ctx, q, c); err != nil {
			return err
		}
		if err := q.cats.Insert(ctx, c); err != nil {
			return fmt.Errorf("create category: insert: %w", err)
		}
		out = c
		return nil
	})
	return out, err
}

// Get returns the category or ErrNotFound.
func (s *CategoryService) Get(ctx context.Context, id string) (repository.Category, error) {
	c, err := repository.NewCategoryRepo(s.DB).Get(ctx, id)
	if err != nil {
		return repository.Category{}, fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return repository.Category{}, notFound("category", id)
	}
	return *c, nil
}

func (s *CategoryService) List(ctx context.Context, owner repository.Owner) ([]repository.Category, error) {
	return repository.NewCategoryRepo(s.DB).List(ctx, owner, false)
}

// Update writes patch. A rename recomputes this node's path from its current
// parent and then every descendant's.
func (s *CategoryService) Update(ctx context.Context, id string, patch CategoryPatch) (repository.Category, error) {
	var out repository.Category
	err := inTx(ctx, s.DB, func(q queries) error {
		c, err := q.cats.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		if c == nil {
			return notFound("category", id)
		}
		renamed := false
		if patch.Name != nil {
			name, err := validCategoryName(*patch.Name)
			if err != nil {
				return err
			}
			renamed = name != c.Name
			c.Name = name
		}
		if patch.Description != nil {
			c.Description = optional(*patch.Description)
		}
		if patch.IsIncome != nil {
			c.IsIncome = *patch.IsIncome
		}
		if patch.IsExpense != nil {
			c.IsExpense = *patch.IsExpense
		}
		if patch.BudgetMonthly != nil {
			c.BudgetMonthly = patch.BudgetMonthly
		}
		if patch.BudgetWeekly != nil {
			c.BudgetWeekly = patch.BudgetWeekly
		}
		if patch.BudgetYearly != nil {
			c.BudgetYearly = patch.BudgetYearly
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		if patch.SortOrder != nil {
			c.SortOrder = *patch.SortOrder
		}
		if renamed {
			if err := s.place(ctx, q, c, c.ParentID); err != nil {
				return err
			}
		}
		c.UpdatedAt = database.Now()
		if err := q.cats.Update(ctx, *c); err != nil {
			return fmt.Errorf("update category: write: %w", err)
		}
		if renamed {
			if err := s.updateChildPaths(ctx, q, *c, 0); err != nil {
				return err
			}
		}
		out = *c
		return nil
	})
	return out, err
}

// Move re-parents id under newParentID, or to the root when newParentID is
// nil. The new parent may not be id itself or any of its descendants.
func (s *CategoryService) Move(ctx context.Context, id string, newParentID *string, sortOrder *int) (repository.Category, error) {
	var out repository.Category
	err := inTx(ctx, s.DB, func(q queries) error {
		c, err := q.cats.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("move category: %w", err)
		}
		if c == nil {
			return notFound("category", id)
		}
		if newParentID != nil && *newParentID == "" {
			newParentID = nil
		}
		if newParentID != nil {
			if *newParentID == id {
				return invalid("parent_id", "a category cannot be its own parent")
			}
			cyclic, err := s.isAncestor(ctx, q, id, *newParentID)
			if err != nil {
				return err
			}
			if cyclic {
				return invalid("parent_id", "moving %s under %s would create a cycle", id, *newParentID)
			}
		}
		if err := s.place(ctx, q, c, newParentID); err != nil {
			return err
		}
		height, err := s.subtreeHeight(ctx, q, c.ID, 0)
		if err != nil {
			return err
		}
		if err := s.checkDepth(c.Level + height); err != nil {
			return err
		}
		if sortOrder != nil {
			c.SortOrder = *sortOrder
		}
		c.UpdatedAt = database.Now()
		if err := q.cats.Update(ctx, *c); err != nil {
			return fmt.Errorf("move category: write: %w", err)
		}
		if err := s.updateChildPaths(ctx, q, *c, 0); err != nil {
			return err
		}
		log := logger.FromContext(ctx)
		log.Debug().Str("category_id", id).Str("path", c.Path).Msg("category moved")
		out = *c
		return nil
	})
	return out, err
}

// place sets c's parent, path and level from parentID.
func (s *CategoryService) place(ctx context.Context, q queries, c *repository.Category, parentID *string) error {
	if parentID == nil {
		c.ParentID = nil
		c.Level = 1
		c.Path = c.Name
		return s.checkPathFree(ctx, q, *c)
	}
	parent, err := q.cats.Get(ctx, *parentID)
	if err != nil {
		return fmt.Errorf("category parent lookup: %w", err)
	}
	if parent == nil {
		return notFound("category", *parentID)
	}
	if parent.Owner != c.Owner {
		return invalid("parent_id", "parent belongs to a different owner")
	}
	pid := parent.ID
	c.ParentID = &pid
	c.Path = parent.Path + "/" + c.Name
	c.Level = pathLevel(c.Path)
	if err := s.checkDepth(c.Level); err != nil {
		return err
	}
	return s.checkPathFree(ctx, q, *c)
}

func (s *CategoryService) checkDepth(level int) error {
	if limit := s.opts().MaxCategoryDepth; level > limit {
		return invalid("parent_id", "categories nest at most %d levels", limit)
	}
	return nil
}

// checkPathFree rejects c when UniqueCategoryPaths is set and another of the
// owner's categories already sits at c's path.
func (s *CategoryService) checkPathFree(ctx context.Context, q queries, c repository.Category) error {
	if !s.opts().UniqueCategoryPaths {
		return nil
	}
	existing, err := q.cats.List(ctx, c.Owner, false)
	if err != nil {
		return fmt.Errorf("category path check: %w", err)
	}
	for _, other := range existing {
		if other.ID != c.ID && strings.EqualFold(other.Path, c.Path) {
			return fmt.Errorf("category %q: %w", c.Path, ErrConflict)
		}
	}
	return nil
}

// isAncestor walks up from node and reports whether ancestorID is on the
// chain, node included.
func (s *CategoryService) isAncestor(ctx context.Context, q queries, ancestorID, node string) (bool, error) {
	limit := s.opts().MaxCategoryDepth
	cur := node
	for depth := 0; ; depth++ {
		if depth > limit {
			return false, errDepthExceeded
		}
		if cur == ancestorID {
			return true, nil
		}
		c, err := q.cats.Get(ctx, cur)
		if err != nil {
			return false, fmt.Errorf("category ancestry: %w", err)
		}
		if c == nil {
			return false, notFound("category", cur)
		}
		if c.ParentID == nil {
			return false, nil
		}
		cur = *c.ParentID
	}
}

// subtreeHeight returns the number of levels below id.
func (s *CategoryService) subtreeHeight(ctx context.Context, q queries, id string, depth int) (int, error) {
	if depth >= s.opts().MaxCategoryDepth {
		return 0, fmt.Errorf("category %s: %w", id, errDepthExceeded)
	}
	children, err := q.cats.Children(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("category children: %w", err)
	}
	height := 0
	for _, child := range children {
		h, err := s.subtreeHeight(ctx, q, child.ID, depth+1)
		if err != nil {
			return 0, err
		}
		if h+1 > height {
			height = h + 1
		}
	}
	return height, nil
}

// updateChildPaths recomputes path and level for every descendant of parent.
func (s *CategoryService) updateChildPaths(ctx context.Context, q queries, parent repository.Category, depth int) error {
	if depth >= s.opts().MaxCategoryDepth {
		return fmt.Errorf("category %s: %w", parent.ID, errDepthExceeded)
	}
	children, err := q.cats.Children(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("category children: %w", err)
	}
	now := database.Now()
	for _, child := range children {
		child.Path = parent.Path + "/" + child.Name
		child.Level = pathLevel(child.Path)
		if err := q.cats.SetPath(ctx, child.ID, child.Path, child.Level, now); err != nil {
			return fmt.Errorf("category %s: set path: %w", child.ID, err)
		}
		if err := s.updateChildPaths(ctx, q, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the category; children go with it through the storage
// cascade. With reassignTo, transactions and rules pointing at id are moved
// to reassignTo first. Transactions still pointing into the deleted subtree
// have the reference cleared. Every transaction touched gets its own history
// entry. Deleting a missing category reports false.
func (s *CategoryService) Delete(ctx context.Context, id string, reassignTo *string) (bool, error) {
	deleted := false
	err := inTx(ctx, s.DB, func(q queries) error {
		c, err := q.cats.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if c == nil {
			return nil
		}
		if reassignTo != nil && *reassignTo != "" {
			if err := s.reassign(ctx, q, *c, *reassignTo); err != nil {
				return err
			}
		}
		if err := s.clearReferences(ctx, q, *c); err != nil {
			return err
		}
		deleted, err = q.cats.Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (s *CategoryService) reassign(ctx context.Context, q queries, c repository.Category, to string) error {
	target, err := q.cats.Get(ctx, to)
	if err != nil {
		return fmt.Errorf("delete category: target lookup: %w", err)
	}
	if target == nil {
		return notFound("category", to)
	}
	if target.Owner != c.Owner {
		return invalid("reassign_to", "target belongs to a different owner")
	}
	doomed, err := s.isAncestor(ctx, q, c.ID, to)
	if err != nil {
		return err
	}
	if doomed {
		return invalid("reassign_to", "target %s is deleted along with %s", to, c.ID)
	}

	ref := to
	if err := s.repoint(ctx, q, c, map[string]bool{c.ID: true}, &ref); err != nil {
		return err
	}
	if _, err := q.rules.Retarget(ctx, c.ID, to, database.Now()); err != nil {
		return fmt.Errorf("delete category: retarget rules: %w", err)
	}
	return nil
}

// clearReferences unsets every transaction category that points at c or one
// of its descendants.
func (s *CategoryService) clearReferences(ctx context.Context, q queries, c repository.Category) error {
	doomed := map[string]bool{}
	if err := s.collectSubtree(ctx, q, c.ID, 0, doomed); err != nil {
		return err
	}
	return s.repoint(ctx, q, c, doomed, nil)
}

func (s *CategoryService) collectSubtree(ctx context.Context, q queries, id string, depth int, into map[string]bool) error {
	if depth >= s.opts().MaxCategoryDepth {
		return fmt.Errorf("category %s: %w", id, errDepthExceeded)
	}
	into[id] = true
	children, err := q.cats.Children(ctx, id)
	if err != nil {
		return fmt.Errorf("category children: %w", err)
	}
	for _, child := range children {
		if err := s.collectSubtree(ctx, q, child.ID, depth+1, into); err != nil {
			return err
		}
	}
	return nil
}

// repoint sets every user or group category found in from to to, or clears
// it when to is nil. Each transaction is written through commit.
func (s *CategoryService) repoint(ctx context.Context, q queries, deleted repository.Category, from map[string]bool, to *string) error {
	seen := map[string]bool{}
	var ids []string
	for categoryID := range from {
		refs, err := q.txs.ReferencingCategory(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("delete category: references: %w", err)
		}
		for _, id := range refs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	now := database.Now()
	store := &TransactionStore{DB: s.DB}
	reason := "category " + deleted.Path + " deleted"
	for _, id := range ids {
		t, err := q.txs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category: transaction %s: %w", id, err)
		}
		if t == nil {
			continue
		}
		next := *t
		if next.UserCategoryID != nil && from[*next.UserCategoryID] {
			next.UserCategoryID = to
		}
		if next.GroupCategoryID != nil && from[*next.GroupCategoryID] {
			next.GroupCategoryID = to
		}
		if err := store.commit(ctx, q, *t, next, diffTransaction(*t, next), repository.ActionUpdate, "system", reason, now); err != nil {
			return err
		}
	}
	return nil
}

// Tree returns the owner's active root categories with children nested.
func (s *CategoryService) Tree(ctx context.Context, owner repository.Owner) ([]*CategoryTreeNode, error) {
	cats, err := repository.NewCategoryRepo(s.DB).List(ctx, owner, true)
	if err != nil {
		return nil, fmt.Errorf("category tree: %w", err)
	}
	return buildTree(cats), nil
}

func buildTree(cats []repository.Category) []*CategoryTreeNode {
	nodes := make(map[string]*CategoryTreeNode, len(cats))
	for _, c := range cats {
		nodes[c.ID] = &CategoryTreeNode{Category: c}
	}
	var roots []*CategoryTreeNode
	for _, c := range cats {
		n := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	return roots
}

func validCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "required")
	}
	if strings.Contains(name, "/") {
		return "", invalid("name", "must not contain '/'")
	}
	return name, nil
}

func pathLevel(path string) int {
	return len(strings.Split(path, "/"))
}

func (s *CategoryService) opts() Options {
	if s.Options == (Options{}) {
		return DefaultOptions()
	}
	return s.Options
}
