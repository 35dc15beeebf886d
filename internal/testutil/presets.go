package testutil

// WithStandardHosts adds a small registry covering every field:
//
//	app.test   Work, active, ssl, two aliases (one disabled)
//	api.test   Work, active, proxy, no ssl
//	blog.test  Uncategorized, inactive, static
func (b *Builder) WithStandardHosts() *Builder {
	return b.
		WithHost("app.test",
			Docroot("/srv/app/public"), Group("Work"),
			Alias("www.app.test", true), Alias("old.app.test", false)).
		WithHost("api.test",
			Docroot("/srv/api"), Group("Work"), Type("proxy"), NoSSL()).
		WithHost("blog.test",
			Docroot("/srv/blog"), Inactive())
}

// WithLegacyHosts adds entries in every historical layout plus malformed ones:
//
//	strings.test    aliases as an array of strings
//	singular.test   singular "alias" field
//	typed.test      wrong field types
//	broken.test     not an object (skipped on load)
func (b *Builder) WithLegacyHosts() *Builder {
	return b.
		WithRawEntry("strings.test", `{"docroot": "/srv/s", "aliases": ["a.strings.test", "b.strings.test"]}`).
		WithRawEntry("singular.test", `{"docroot": "/srv/o", "alias": "old.singular.test"}`).
		WithRawEntry("typed.test", `{"group": 5, "active": "yes", "ssl": 1, "type": false}`).
		WithRawEntry("broken.test", `"not-an-object"`)
}
