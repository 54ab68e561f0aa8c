// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserActivityLogTable represents the append-only 'users.activity_log' table.
type UserActivityLogTable struct {
	Table     string
	ID        string
	UserID    string
	Action    string
	IPAddress string
	Device    string
	CreatedAt string
}

// UserActivityLog is the schema definition for users.activity_log
var UserActivityLog = UserActivityLogTable{
	Table:     "users.activity_log",
	ID:        "id",
	UserID:    "userid",
	Action:    "action",
	IPAddress: "ipaddress",
	Device:    "device",
	CreatedAt: "createdat",
}

// Columns returns the columns written on insert.
func (t UserActivityLogTable) Columns() []string {
	return []string{t.UserID, t.Action, t.IPAddress, t.Device, t.CreatedAt}
}
