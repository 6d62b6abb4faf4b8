// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build !purego

package contentcache

import _ "github.com/mattn/go-sqlite3"

const (
	driverName = "sqlite3"
	dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000"
)
