package postgis

import (
	"strings"
	"testing"
)

func TestConnString_Defaults(t *testing.T) {
	s := connString(DBInfo{Host: "db.internal", Database: "tiles", User: "reader", Password: "secret"})

	for _, want := range []string{
		"host=db.internal", "port=5432", "dbname=tiles", "user=reader",
		"password=secret", "sslmode=disable", "default_transaction_read_only=on",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("connString() = %q, missing %q", s, want)
		}
	}
}

func TestConnString_CustomPortAndSSLMode(t *testing.T) {
	s := connString(DBInfo{Host: "db", Port: 6432, Database: "d", User: "u", SSLMode: "require"})
	if !strings.Contains(s, "port=6432") {
		t.Errorf("connString() = %q, missing custom port", s)
	}
	if !strings.Contains(s, "sslmode=require") {
		t.Errorf("connString() = %q, missing custom sslmode", s)
	}
}

func TestTLSConfig_DisabledByDefault(t *testing.T) {
	cfg, err := tlsConfig(DBInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg != nil {
		t.Error("expected a nil tls.Config when sslmode is unset")
	}
}

func TestTLSConfig_AllowSkipsVerification(t *testing.T) {
	cfg, err := tlsConfig(DBInfo{Host: "db", SSLMode: "allow"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Errorf("expected InsecureSkipVerify for sslmode=allow, got %+v", cfg)
	}
}

