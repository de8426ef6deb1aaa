// Package reconcile compares the order lines Klarna holds with the lines
// translated from the WooCommerce order. An empty diff means an authorization
// update would be a no-op and can be skipped.
package reconcile

import (
	"sort"

	"kom-bridge/internal/model"
)

// LineDiff describes how the desired order lines differ from Klarna's.
type LineDiff struct {
	Added   []model.OrderLine // In desired but not in current
	Removed []model.OrderLine // In current but not in desired
	Changed []LineChange      // In both with different quantity or amounts
}

// LineChange pairs the current and desired version of a line.
type LineChange struct {
	Current model.OrderLine
	Desired model.OrderLine
}

// IsEmpty returns true if no line changes are needed.
func (d *LineDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffLines computes the delta between Klarna's current lines and the desired
// lines. Lines are matched by type and reference; duplicates of the same key
// are matched in order.
//
// Results are sorted by key so the diff is stable for identical input.
func DiffLines(current, desired []model.OrderLine) *LineDiff {
	diff := &LineDiff{}

	currentByKey := group(current)
	desiredByKey := group(desired)

	for _, key := range sortedKeys(desiredByKey) {
		want := desiredByKey[key]
		have := currentByKey[key]
		for i, line := range want {
			if i >= len(have) {
				diff.Added = append(diff.Added, line)
				continue
			}
			if !sameAmounts(have[i], line) {
				diff.Changed = append(diff.Changed, LineChange{Current: have[i], Desired: line})
			}
		}
	}

	for _, key := range sortedKeys(currentByKey) {
		have := currentByKey[key]
		want := desiredByKey[key]
		if len(have) > len(want) {
			diff.Removed = append(diff.Removed, have[len(want):]...)
		}
	}

	return diff
}

// LinesMatch reports whether Klarna's order already carries exactly the
// desired lines and total.
func LinesMatch(ko *model.KlarnaOrder, desired model.OrderLines) bool {
	if ko == nil || ko.OrderAmount != desired.OrderAmount {
		return false
	}
	return DiffLines(ko.OrderLines, desired.OrderLines).IsEmpty()
}

// lineKey identifies a line across both sides. Type is omitted by Klarna for
// some legacy orders, so an empty type matches physical.
func lineKey(l model.OrderLine) string {
	t := l.Type
	if t == "" {
		t = model.LineTypePhysical
	}
	return t + "|" + l.Reference
}

func group(lines []model.OrderLine) map[string][]model.OrderLine {
	m := make(map[string][]model.OrderLine, len(lines))
	for _, l := range lines {
		k := lineKey(l)
		m[k] = append(m[k], l)
	}
	return m
}

func sortedKeys(m map[string][]model.OrderLine) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameAmounts compares everything Klarna uses for the authorization.
// Names and URLs are display-only.
func sameAmounts(a, b model.OrderLine) bool {
	return a.Quantity == b.Quantity &&
		a.UnitPrice == b.UnitPrice &&
		a.TaxRate == b.TaxRate &&
		a.TotalAmount == b.TotalAmount &&
		a.TotalDiscountAmount == b.TotalDiscountAmount &&
		a.TotalTaxAmount == b.TotalTaxAmount
}
