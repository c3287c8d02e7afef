// Package invoice implements the invoice document: header fields, issuer and
// payer, line items with computed totals, and a status workflow that locks
// the content once the invoice leaves DRAFT.
package invoice
