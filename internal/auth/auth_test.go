package auth

import (
	"encoding/base64"
	"testing"
)

func TestCheckBearer(t *testing.T) {
	c := New("secret-token", "git-secret", nil)

	if c.CheckBearer("") != Public {
		t.Error("missing header should be Public")
	}
	if c.CheckBearer("Bearer wrong") != Public {
		t.Error("wrong token should be Public")
	}
	if c.CheckBearer("Bearer secret-token") != Admin {
		t.Error("correct token should be Admin")
	}
	if c.CheckBearer("secret-token") != Public {
		t.Error("header without Bearer prefix should be Public")
	}
}

func TestCheckBearerDisabledWhenNoToken(t *testing.T) {
	c := New("", "git-secret", nil)
	if c.CheckBearer("Bearer anything") != Public {
		t.Error("empty configured token must never match anyone")
	}
}

func TestCheckGitBasic(t *testing.T) {
	c := New("api-secret", "git-secret", nil)

	basic := func(user, pass string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
	}

	if !c.CheckGitBasic(basic("ignored-user", "git-secret")) {
		t.Error("correct password should authenticate regardless of username")
	}
	if c.CheckGitBasic(basic("ignored-user", "wrong")) {
		t.Error("wrong password should fail")
	}
	if c.CheckGitBasic("") {
		t.Error("missing header should fail")
	}
	if c.CheckGitBasic("Basic not-base64!!") {
		t.Error("malformed base64 should fail")
	}
}

func TestCheckGitBasicDisabledWhenNoToken(t *testing.T) {
	c := New("api-secret", "", nil)
	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p"))
	if c.CheckGitBasic(basic) {
		t.Error("empty git_token must deny all Git requests")
	}
}
