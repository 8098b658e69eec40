package service

import (
	"regexp"

	"github.com/jask/ledger/internal/database/repository"
)

func compilePattern(p string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + p)
}

// ruleMatches reports whether every criterion set on rule holds for t. A
// pattern that does not compile makes the rule never match.
func ruleMatches(rule repository.CategoryRule, t repository.Transaction) bool {
	if rule.MerchantPattern != nil {
		if t.MerchantName == nil || !patternMatches(*rule.MerchantPattern, *t.MerchantName) {
			return false
		}
	}
	if rule.NamePattern != nil && !patternMatches(*rule.NamePattern, t.Name) {
		return false
	}
	if rule.DescriptionPattern != nil {
		if t.Description == nil || !patternMatches(*rule.DescriptionPattern, *t.Description) {
			return false
		}
	}
	if rule.AmountMin != nil && t.Amount < *rule.AmountMin {
		return false
	}
	if rule.AmountMax != nil && t.Amount > *rule.AmountMax {
		return false
	}
	if rule.TransactionType != nil && t.TransactionType != *rule.TransactionType {
		return false
	}
	return true
}

func patternMatches(pattern, s string) bool {
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
