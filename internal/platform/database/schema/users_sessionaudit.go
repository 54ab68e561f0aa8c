// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserSessionAuditTable represents the 'users.session_audit' table.
// One row per login that has not been logged out.
type UserSessionAuditTable struct {
	Table     string
	ID        string
	UserID    string
	CreatedAt string
}

// UserSessionAudit is the schema definition for users.session_audit
var UserSessionAudit = UserSessionAuditTable{
	Table:     "users.session_audit",
	ID:        "id",
	UserID:    "userid",
	CreatedAt: "createdat",
}
