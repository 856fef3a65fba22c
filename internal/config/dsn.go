package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveDSN builds a storage DSN from the environment for the given backend
// kind when the job does not set one.
//
// Precedence:
//  1. DSN (full DSN string)
//  2. DSN_HOST / DSN_PORT / DSN_USER / DSN_PASSWORD / DSN_DB, plus
//     DSN_SSLMODE (postgres), DSN_ENCRYPT (mssql), DSN_SQLITE (sqlite) and
//     DSN_PARAMS (extra query parameters, no leading '?')
//
// ok is false when none of these variables is set.
func ResolveDSN(kind string, getenv func(string) string) (dsn string, ok bool, err error) {
	env := func(k string) string { return strings.TrimSpace(getenv(k)) }

	if v := env("DSN"); v != "" {
		return v, true, nil
	}

	host, port, user, db := env("DSN_HOST"), env("DSN_PORT"), env("DSN_USER"), env("DSN_DB")
	pass := getenv("DSN_PASSWORD") // may contain spaces
	params := env("DSN_PARAMS")
	sslmode, encrypt, sqlitePath := env("DSN_SSLMODE"), env("DSN_ENCRYPT"), env("DSN_SQLITE")

	if host == "" && port == "" && user == "" && pass == "" && db == "" && params == "" && sslmode == "" && encrypt == "" && sqlitePath == "" {
		return "", false, nil
	}

	switch kind {
	case "postgres":
		u := &url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(orDefault(user, "user"), orDefault(pass, "password")),
			Host:   orDefault(host, "postgres") + ":" + orDefault(port, "5432"),
			Path:   "/" + orDefault(db, "tables"),
		}
		q := u.Query()
		q.Set("sslmode", orDefault(sslmode, "disable"))
		appendRawParams(q, params)
		u.RawQuery = q.Encode()
		return u.String(), true, nil

	case "mssql":
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(orDefault(user, "user"), orDefault(pass, "password")),
			Host:   orDefault(host, "mssql") + ":" + orDefault(port, "1433"),
		}
		q := u.Query()
		q.Set("database", orDefault(db, "tables"))
		q.Set("encrypt", orDefault(encrypt, "disable"))
		appendRawParams(q, params)
		u.RawQuery = q.Encode()
		return u.String(), true, nil

	case "sqlite":
		return sqliteDSN(sqlitePath, params), true, nil

	default:
		return "", false, fmt.Errorf("unsupported backend for DSN override: %q", kind)
	}
}

// sqliteDSN treats base as a full DSN when it contains ':' and as a file path
// otherwise.
func sqliteDSN(base, params string) string {
	base = orDefault(base, "tables.db")
	if !strings.Contains(base, ":") {
		base = "file:" + base
	}
	if params == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params
}

// appendRawParams adds URL-encoded parameters to q. A malformed fragment is
// ignored.
func appendRawParams(q url.Values, raw string) {
	if raw == "" {
		return
	}
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		return
	}
	for k, vals := range parsed {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range vals {
			q.Add(k, v)
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
