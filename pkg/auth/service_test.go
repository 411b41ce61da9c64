package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIssueAndAuthenticate(t *testing.T) {
	Convey("Given an auth service with a signing key", t, func() {
		svc := NewService("test-signing-key")
		token, err := svc.IssueToken("owner-1")

		Convey("Then a token is returned", func() {
			So(err, ShouldBeNil)
			So(token, ShouldNotBeEmpty)
		})

		Convey("And the bearer header authenticates back to the owner", func() {
			owner, err := svc.Authenticate("Bearer " + token)
			So(err, ShouldBeNil)
			So(owner, ShouldEqual, "owner-1")
		})
	})
}

func TestAuthenticateRejectsBadInput(t *testing.T) {
	Convey("Given an auth service", t, func() {
		svc := NewService("test-signing-key")

		Convey("Then a missing header is rejected", func() {
			_, err := svc.Authenticate("")
			So(err, ShouldNotBeNil)
		})

		Convey("And a garbage token is rejected", func() {
			_, err := svc.Authenticate("Bearer not.a.token")
			So(err, ShouldNotBeNil)
		})

		Convey("And a token signed with a different key is rejected", func() {
			other := NewService("other-key")
			token, err := other.IssueToken("owner-1")
			So(err, ShouldBeNil)

			_, err = svc.Authenticate("Bearer " + token)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestIssueTokenRequiresOwner(t *testing.T) {
	Convey("Given an auth service", t, func() {
		svc := NewService("test-signing-key")
		_, err := svc.IssueToken("")

		Convey("Then an empty owner is rejected", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestExpiredTokenRejected(t *testing.T) {
	Convey("Given a token whose expiry is in the past", t, func() {
		svc := NewService("test-signing-key")

		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "owner-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := expired.SignedString([]byte("test-signing-key"))
		So(err, ShouldBeNil)

		Convey("Then the token no longer authenticates", func() {
			_, err := svc.Authenticate("Bearer " + signed)
			So(err, ShouldNotBeNil)
		})
	})
}
