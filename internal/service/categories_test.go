package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledger/internal/database/repository"
)

func requireConsistentTree(t *testing.T, nodes []*CategoryTreeNode, parentPath string) {
	t.Helper()
	for _, n := range nodes {
		require.Equal(t, len(strings.Split(n.Path, "/")), n.Level, n.Path)
		if parentPath == "" {
			require.Nil(t, n.ParentID)
			require.Equal(t, n.Name, n.Path)
		} else {
			require.Equal(t, parentPath+"/"+n.Name, n.Path)
		}
		requireConsistentTree(t, n.Children, n.Path)
	}
}

func TestCategoryCreatePaths(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")

	expenses := mustCategory(t, ctx, e, owner, "Expenses", nil)
	require.Equal(t, "Expenses", expenses.Path)
	require.Equal(t, 1, expenses.Level)

	utilities := mustCategory(t, ctx, e, owner, "Utilities", &expenses)
	require.Equal(t, "Expenses/Utilities", utilities.Path)
	require.Equal(t, 2, utilities.Level)
	require.Equal(t, expenses.ID, *utilities.ParentID)

	for _, name := range []string{"", "  ", "A/B"} {
		_, err := e.categories.Create(ctx, CategoryInput{Owner: owner, Name: name})
		require.True(t, IsValidation(err), name)
	}
	_, err := e.categories.Create(ctx, CategoryInput{Name: "Orphan"})
	require.True(t, IsValidation(err))

	// same-named siblings are allowed by default
	twin, err := e.categories.Create(ctx, CategoryInput{Owner: owner, Name: "utilities", ParentID: &expenses.ID})
	require.NoError(t, err)
	require.Equal(t, "Expenses/utilities", twin.Path)
	_, err = e.categories.Create(ctx, CategoryInput{Owner: owner, Name: "expenses"})
	require.NoError(t, err)

	_, err = e.categories.Create(ctx, CategoryInput{Owner: repository.GroupOwner("family"), Name: "Shared", ParentID: &expenses.ID})
	require.True(t, IsValidation(err))

	missing := "missing"
	_, err = e.categories.Create(ctx, CategoryInput{Owner: owner, Name: "Lost", ParentID: &missing})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryUniquePathsOption(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	opts := DefaultOptions()
	opts.UniqueCategoryPaths = true
	svc := &CategoryService{DB: e.db, Options: opts}
	owner := repository.UserOwner("user-1")

	expenses, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "Expenses"})
	require.NoError(t, err)
	utilities, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "Utilities", ParentID: &expenses.ID})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CategoryInput{Owner: owner, Name: "expenses"})
	require.ErrorIs(t, err, ErrConflict)
	_, err = svc.Create(ctx, CategoryInput{Owner: owner, Name: "UTILITIES", ParentID: &expenses.ID})
	require.ErrorIs(t, err, ErrConflict)

	// moving Utilities to the root is fine until a root of that name exists
	_, err = svc.Create(ctx, CategoryInput{Owner: owner, Name: "Utilities"})
	require.NoError(t, err)
	_, err = svc.Move(ctx, utilities.ID, nil, nil)
	require.ErrorIs(t, err, ErrConflict)

	// other owners have their own namespace
	_, err = svc.Create(ctx, CategoryInput{Owner: repository.GroupOwner("user-1"), Name: "Expenses"})
	require.NoError(t, err)
}

func TestCategoryDepthLimit(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	opts := DefaultOptions()
	opts.MaxCategoryDepth = 4
	svc := &CategoryService{DB: e.db, Options: opts}
	owner := repository.UserOwner("user-1")

	var chain []repository.Category
	var parent *string
	for _, name := range []string{"L1", "L2", "L3", "L4"} {
		c, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: name, ParentID: parent})
		require.NoError(t, err)
		chain = append(chain, c)
		parent = &c.ID
	}
	require.Equal(t, 4, chain[3].Level)

	_, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "L5", ParentID: &chain[3].ID})
	require.True(t, IsValidation(err))

	// a tree at the limit can still be renamed from the root
	name := "Top"
	_, err = svc.Update(ctx, chain[0].ID, CategoryPatch{Name: &name})
	require.NoError(t, err)
	leaf, err := svc.Get(ctx, chain[3].ID)
	require.NoError(t, err)
	require.Equal(t, "Top/L2/L3/L4", leaf.Path)

	// a two-level subtree does not fit under level 3
	a, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CategoryInput{Owner: owner, Name: "B", ParentID: &a.ID})
	require.NoError(t, err)
	_, err = svc.Move(ctx, a.ID, &chain[2].ID, nil)
	require.True(t, IsValidation(err))
	_, err = svc.Move(ctx, a.ID, &chain[1].ID, nil)
	require.NoError(t, err)
}

func TestCategoryParentLoopStopsAtDepthLimit(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	opts := DefaultOptions()
	opts.MaxCategoryDepth = 8
	svc := &CategoryService{DB: e.db, Options: opts}
	owner := repository.UserOwner("user-1")

	a, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "B", ParentID: &a.ID})
	require.NoError(t, err)
	other, err := svc.Create(ctx, CategoryInput{Owner: owner, Name: "Other"})
	require.NoError(t, err)

	_, err = e.db.ExecContext(ctx, `UPDATE transaction_categories SET parent_id = ? WHERE id = ?`, b.ID, a.ID)
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(ctx, a.ID, CategoryPatch{Name: &name})
	require.ErrorIs(t, err, errDepthExceeded)

	_, err = svc.Move(ctx, a.ID, nil, nil)
	require.ErrorIs(t, err, errDepthExceeded)

	_, err = svc.Move(ctx, other.ID, &a.ID, nil)
	require.ErrorIs(t, err, errDepthExceeded)

	// nothing was written
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "A", got.Name)
}

func TestCategoryRenamePropagates(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")
	expenses := mustCategory(t, ctx, e, owner, "Expenses", nil)
	utilities := mustCategory(t, ctx, e, owner, "Utilities", &expenses)
	power := mustCategory(t, ctx, e, owner, "Power", &utilities)

	name := "Bills"
	renamed, err := e.categories.Update(ctx, expenses.ID, CategoryPatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Bills", renamed.Path)

	got, err := e.categories.Get(ctx, utilities.ID)
	require.NoError(t, err)
	require.Equal(t, "Bills/Utilities", got.Path)
	require.Equal(t, 2, got.Level)

	got, err = e.categories.Get(ctx, power.ID)
	require.NoError(t, err)
	require.Equal(t, "Bills/Utilities/Power", got.Path)
	require.Equal(t, 3, got.Level)
}

func TestCategoryMove(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")
	a := mustCategory(t, ctx, e, owner, "A", nil)
	b := mustCategory(t, ctx, e, owner, "B", &a)
	c := mustCategory(t, ctx, e, owner, "C", &b)
	d := mustCategory(t, ctx, e, owner, "D", &c)
	other := mustCategory(t, ctx, e, owner, "Other", nil)

	_, err := e.categories.Move(ctx, a.ID, &a.ID, nil)
	require.True(t, IsValidation(err))

	// direct child
	_, err = e.categories.Move(ctx, a.ID, &b.ID, nil)
	require.True(t, IsValidation(err))

	// deep descendant
	_, err = e.categories.Move(ctx, a.ID, &d.ID, nil)
	require.True(t, IsValidation(err))

	order := 7
	moved, err := e.categories.Move(ctx, b.ID, &other.ID, &order)
	require.NoError(t, err)
	require.Equal(t, "Other/B", moved.Path)
	require.Equal(t, 2, moved.Level)
	require.Equal(t, 7, moved.SortOrder)

	got, err := e.categories.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "Other/B/C/D", got.Path)
	require.Equal(t, 4, got.Level)

	root, err := e.categories.Move(ctx, c.ID, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "C", root.Path)
	require.Equal(t, 1, root.Level)
	require.Nil(t, root.ParentID)

	got, err = e.categories.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "C/D", got.Path)
	require.Equal(t, 2, got.Level)

	tree, err := e.categories.Tree(ctx, owner)
	require.NoError(t, err)
	requireConsistentTree(t, tree, "")
}

func TestCategoryDeleteReassigns(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")
	utilities := mustCategory(t, ctx, e, owner, "Utilities", nil)
	child := mustCategory(t, ctx, e, owner, "Water", &utilities)
	bills := mustCategory(t, ctx, e, owner, "Bills", nil)

	in := txInput("City Power", -80, day(2024, 3, 1))
	in.UserCategoryID = &utilities.ID
	tx := mustCreate(t, ctx, e, in)
	waterIn := txInput("City Water", -40, day(2024, 3, 2))
	waterIn.UserCategoryID = &child.ID
	water := mustCreate(t, ctx, e, waterIn)
	rule, err := e.rules.Create(ctx, RuleInput{Owner: owner, CategoryID: utilities.ID, Name: "power", NamePattern: strp("power")})
	require.NoError(t, err)

	// the target may not be deleted along with the category
	_, err = e.categories.Delete(ctx, utilities.ID, &child.ID)
	require.True(t, IsValidation(err))

	ok, err := e.categories.Delete(ctx, utilities.ID, &bills.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := e.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, bills.ID, *got.UserCategoryID)

	gotRule, err := e.rules.Get(ctx, rule.ID)
	require.NoError(t, err)
	require.Equal(t, bills.ID, gotRule.CategoryID)

	gotBills, err := e.categories.Get(ctx, bills.ID)
	require.NoError(t, err)
	require.Equal(t, 1, gotBills.TransactionCount)
	require.InDelta(t, -80, gotBills.TotalAmount, 1e-9)

	_, err = e.categories.Get(ctx, child.ID)
	require.ErrorIs(t, err, ErrNotFound)

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.Equal(t, "user_category_id", *last.FieldName)
	require.Equal(t, bills.ID, *last.NewValue)

	// the cascaded child's transaction is cleared, not reassigned
	gotWater, err := e.store.Get(ctx, water.ID)
	require.NoError(t, err)
	require.Nil(t, gotWater.UserCategoryID)
	history, err = e.store.History(ctx, water.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	last = history[1]
	require.Equal(t, "user_category_id", *last.FieldName)
	require.Equal(t, child.ID, *last.OldValue)
	require.Nil(t, last.NewValue)
	require.Equal(t, "system", last.ModifiedBy)
	require.Equal(t, "category Utilities deleted", *last.Reason)

	ok, err = e.categories.Delete(ctx, utilities.ID, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCategoryDeleteCascades(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.GroupOwner("family")
	root := mustCategory(t, ctx, e, owner, "Home", nil)
	child := mustCategory(t, ctx, e, owner, "Garden", &root)
	grandchild := mustCategory(t, ctx, e, owner, "Tools", &child)

	in := txInput("Hardware store", -35, day(2024, 3, 1))
	in.GroupCategoryID = &grandchild.ID
	tx := mustCreate(t, ctx, e, in)

	ok, err := e.categories.Delete(ctx, root.ID, nil)
	require.NoError(t, err)
	require.True(t, ok)

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		_, err := e.categories.Get(ctx, id)
		require.ErrorIs(t, err, ErrNotFound)
	}
	got, err := e.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Nil(t, got.GroupCategoryID)

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "group_category_id", *history[1].FieldName)
	require.Equal(t, grandchild.ID, *history[1].OldValue)
	require.Nil(t, history[1].NewValue)
}

func TestCategoryTree(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")

	n, err := e.categories.SeedDefaults(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 14, n)

	n, err = e.categories.SeedDefaults(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, n)

	tree, err := e.categories.Tree(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	requireConsistentTree(t, tree, "")

	var expenses *CategoryTreeNode
	for _, n := range tree {
		if n.Name == "Expenses" {
			expenses = n
		}
	}
	require.NotNil(t, expenses)
	require.True(t, expenses.IsExpense)
	require.Len(t, expenses.Children, 7)

	// inactive nodes drop out of the tree
	inactive := false
	_, err = e.categories.Update(ctx, expenses.ID, CategoryPatch{IsActive: &inactive})
	require.NoError(t, err)
	tree, err = e.categories.Tree(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	other, err := e.categories.Tree(ctx, repository.UserOwner("user-2"))
	require.NoError(t, err)
	require.Empty(t, other)
}
