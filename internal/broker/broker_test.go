package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_EqualIgnoresNickname(t *testing.T) {
	a := Identity{ApplicationID: "com.a", SigningFingerprint: "h1", Nickname: "first"}
	b := Identity{ApplicationID: "com.a", SigningFingerprint: "h1", Nickname: "second"}
	c := NewIdentity("com.a", "h2")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "first", a.String())
	assert.Equal(t, "com.a::h2", c.String())
}

func TestIdentity_IsZero(t *testing.T) {
	assert.True(t, NewIdentity("", "h").IsZero())
	assert.True(t, NewIdentity("com.a", "  ").IsZero())
	assert.False(t, NewIdentity("com.a", "h").IsZero())
}

func TestCandidateSet_OrderAndDedup(t *testing.T) {
	a := Candidate{Identity: NewIdentity("com.a", "h1")}
	b := Candidate{Identity: NewIdentity("com.b", "h2")}
	aDebug := Candidate{Identity: NewIdentity("com.a", "h3"), Debug: true}

	s := NewCandidateSet(b, a, b, aDebug, Candidate{})
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []Identity{b.Identity, a.Identity, aDebug.Identity}, s.Identities())

	assert.True(t, s.Contains(NewIdentity("com.a", "h1")))
	assert.False(t, s.Contains(NewIdentity("com.a", "other")))

	got := s.Lookup("  COM.A ")
	require.Len(t, got, 2)
	assert.Equal(t, "h1", got[0].SigningFingerprint)
	assert.Equal(t, "h3", got[1].SigningFingerprint)

	assert.Len(t, s.Production(), 2)
	assert.Equal(t, 2, s.Filter(false).Len())
	assert.Equal(t, 3, s.Filter(true).Len())
}

func TestKnownCandidates(t *testing.T) {
	prod := KnownCandidates(false)
	assert.Equal(t, 3, prod.Len())
	assert.Equal(t, ProdAuthenticator.Identity, prod.All()[0].Identity)

	all := KnownCandidates(true)
	assert.Greater(t, all.Len(), prod.Len())
	assert.True(t, all.Contains(DebugMockLinkToWindows.Identity))
}

func TestError_Is(t *testing.T) {
	legacy := NewError(KindLegacyOnlyErr, KindHTTP, "com.a", "disabled", nil)
	assert.True(t, IsUnsupported(legacy))
	assert.True(t, IsLegacyOnly(legacy))
	assert.False(t, IsConnectionFailure(legacy))

	cause := errors.New("eof")
	conn := NewError(KindConnectionErr, KindStructuredRequest, "com.b", "read", cause)
	wrapped := fmt.Errorf("send: %w", conn)
	assert.True(t, IsConnectionFailure(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsUnsupported(wrapped))

	var be *Error
	require.ErrorAs(t, wrapped, &be)
	assert.Equal(t, "com.b", be.Target)
}

func TestErrorFromPayload(t *testing.T) {
	assert.NoError(t, ErrorFromPayload(Payload{KeyActiveBrokerAppID: "x"}, KindHTTP, "t"))

	err := ErrorFromPayload(ErrorPayload(KindValidationErr, "bad sig"), KindHTTP, "t")
	assert.True(t, IsValidationFailure(err))

	err = ErrorFromPayload(Payload{KeyErrorKind: "something_new"}, KindHTTP, "t")
	assert.True(t, IsConnectionFailure(err))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Broker ")
	require.NoError(t, err)
	assert.Equal(t, RoleBroker, r)
	assert.NotEqual(t, RoleClient.Namespace(), RoleBroker.Namespace())

	_, err = ParseRole("server")
	assert.Error(t, err)
}
