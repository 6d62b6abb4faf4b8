// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build purego

package contentcache

import _ "modernc.org/sqlite"

const (
	driverName = "sqlite"
	dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
)
