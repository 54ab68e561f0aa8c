// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the users schema so that
// queries are assembled from one source of truth.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	UserID       string
	Email        string
	PasswordHash string
	IsVerified   string
	Status       string
	CreatedAt    string
	UpdatedAt    string
	DeletedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	ID:           "id",
	UserID:       "userid",
	Email:        "email",
	PasswordHash: "passwordhash",
	IsVerified:   "isverified",
	Status:       "status",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
	DeletedAt:    "deletedat",
}

// Columns returns all standard column names in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Email, t.PasswordHash, t.IsVerified,
		t.Status, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
