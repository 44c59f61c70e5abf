// Package models defines the core domain models for BillSplitter.
//
// # Models
//
//   - User: a diner who can pay for an order or owe part of one
//   - Order: one restaurant bill, paid by a single user
//   - Item: a priced, quantified line on an order
//   - Split: the persisted amount one user owes toward one order
//
// Item assignments (which users share which item) are not persisted on their
// own. They are supplied when splits are reconciled and survive only as the
// ItemIDs recorded on each Split.
//
// # Conventions
//
//  1. IDs are UUID strings generated by the store.
//  2. Money is decimal.Decimal; amounts owed are rounded to cents.
//  3. Relationships use ID strings instead of pointers.
package models
