package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/ledger/internal/database/repository"
)

var defaultCategories = []string{
	"Income",
	"Income/Salary",
	"Expenses",
	"Expenses/Housing",
	"Expenses/Housing/Utilities",
	"Expenses/Food/Groceries",
	"Expenses/Food/Restaurants",
	"Expenses/Transport",
	"Expenses/Shopping",
	"Expenses/Subscriptions",
	"Expenses/Health",
	"Expenses/Entertainment",
	"Savings",
}

// SeedDefaults gives an owner a starter tree. It does nothing when the owner
// already has categories, so it is safe to run on every startup.
func (s *CategoryService) SeedDefaults(ctx context.Context, owner repository.Owner) (int, error) {
	existing, err := s.List(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	byPath := map[string]string{}
	created := 0
	for idx, path := range defaultCategories {
		parts := strings.Split(path, "/")
		var parentID *string
		for depth, name := range parts {
			key := strings.Join(parts[:depth+1], "/")
			if id, ok := byPath[key]; ok {
				id := id
				parentID = &id
				continue
			}
			income := parts[0] == "Income"
			c, err := s.Create(ctx, CategoryInput{
				Owner:     owner,
				Name:      name,
				ParentID:  parentID,
				IsIncome:  income,
				IsExpense: !income && parts[0] != "Savings",
				SortOrder: idx,
			})
			if err != nil {
				return created, fmt.Errorf("seed category %s: %w", key, err)
			}
			created++
			byPath[key] = c.ID
			id := c.ID
			parentID = &id
		}
	}
	return created, nil
}
