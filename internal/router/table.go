package router

import "github.com/dshills/ragctx/pkg/types"

// intentOrder is the classification precedence. Keyword sets overlap, so the
// narrower intent wins: a query mentioning both "database" and "migration" is
// a migrations question.
var intentOrder = []types.Intent{
	types.IntentTests,
	types.IntentMigrations,
	types.IntentOpenAPI,
	types.IntentAuth,
	types.IntentDB,
}

// defaultKeywords maps each intent to the keywords that select it.
// Single words match whole tokens; entries containing a space match as phrases.
var defaultKeywords = map[types.Intent][]string{
	types.IntentTests: {
		"test", "tests", "testing", "e2e", "fixture", "fixtures",
		"coverage", "mock", "mocks", "unit test", "integration test",
	},
	types.IntentMigrations: {
		"migration", "migrations", "migrate", "migrating",
		"schema change", "schema changes", "adr",
	},
	types.IntentOpenAPI: {
		"openapi", "swagger", "endpoint", "endpoints", "api spec", "rest api",
	},
	types.IntentAuth: {
		"auth", "authentication", "authorization", "login", "logout",
		"jwt", "oauth", "token", "tokens", "session", "sessions", "password",
	},
	types.IntentDB: {
		"database", "databases", "db", "sql", "postgres", "postgresql",
		"sqlite", "orm", "table", "tables", "query", "queries", "index",
	},
}

// defaultPrefixes lists, per intent, where answers for that intent are expected to live.
// General has no entry and therefore no routing bias.
var defaultPrefixes = map[types.Intent][]string{
	types.IntentTests: {
		"tests/", "test/", "apps/api/tests/", "apps/web/tests/", "e2e/",
	},
	types.IntentMigrations: {
		"apps/docs/app/adr/", "migrations/", "apps/api/migrations/", "db/migrations/",
	},
	types.IntentOpenAPI: {
		"openapi/", "apps/api/openapi/", "docs/api/", "apps/docs/app/api/",
	},
	types.IntentAuth: {
		"apps/api/auth/", "auth/", "apps/docs/app/adr/", "docs/security/",
	},
	types.IntentDB: {
		"apps/api/db/", "db/", "apps/docs/app/adr/", "schema/",
	},
}
