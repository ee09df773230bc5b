package model

import "fmt"

// Category is the fixed set of spending categories a transaction can carry.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryTransfer      Category = "Transfer"
	CategorySalary        Category = "Salary"
	CategoryEntertainment Category = "Entertainment"
	CategoryATM           Category = "ATM"
	CategorySubscription  Category = "Subscription"
	CategoryGovernment    Category = "Government"
	CategoryOther         Category = "Other"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryFood,
		CategoryTransport,
		CategoryShopping,
		CategoryBills,
		CategoryTransfer,
		CategorySalary,
		CategoryEntertainment,
		CategoryATM,
		CategorySubscription,
		CategoryGovernment,
		CategoryOther,
	}
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
