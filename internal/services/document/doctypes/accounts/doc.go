// Package accounts implements the billing accounts document: the wallets and
// bank accounts a contributor organisation pays from and into, with their
// owners, chains and KYC/AML status.
//
// Inputs are validated against JSON schemas kept in schemas.yaml so the same
// contracts can be published to editor and API clients.
package accounts
