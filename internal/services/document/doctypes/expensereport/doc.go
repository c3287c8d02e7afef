// Package expensereport implements the expense report document: per-wallet
// budget line items with linked billing statements over a reporting period,
// plus per-user display preferences in the local scope.
package expensereport
