package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terraconstructs/accessguard/internal/rbac/keys"
)

func TestResourceKeys(t *testing.T) {
	assert.Equal(t, "RESOURCE#", keys.ResourcePartition())
	assert.Equal(t, "RESOURCE#api://a", keys.ResourceSubject("api://a"))
	assert.Equal(t, "RESOURCE#api://a", keys.OwnerPartition("api://a"))
}

func TestScopeAndRoleKeys(t *testing.T) {
	assert.Equal(t, "SCOPE#prod", keys.ScopeSubject("prod"))
	assert.Equal(t, "SCOPE#", keys.ScopePrefix())
	assert.Equal(t, "ROLE#reader", keys.RoleSubject("reader"))
	assert.Equal(t, "ROLE#", keys.RolePrefix())
}

func TestAssignmentByResourceRoundTrip(t *testing.T) {
	subject := keys.AssignmentByResourceSubject("reader", "arn:p1")
	assert.Equal(t, "ASSIGNMENT#ROLE#reader#PRINCIPAL#arn:p1", subject)
	assert.Equal(t, "ASSIGNMENT#ROLE#reader#PRINCIPAL#", keys.AssignmentByResourcePrefix("reader"))
	assert.Equal(t, "ASSIGNMENT#ROLE#", keys.AssignmentByResourcePrefix(""))

	role, principal, ok := keys.ParseAssignmentByResourceSubject(subject)
	assert.True(t, ok)
	assert.Equal(t, "reader", role)
	assert.Equal(t, "arn:p1", principal)
}

func TestParseAssignmentByResourceSubjectRejectsMalformed(t *testing.T) {
	_, _, ok := keys.ParseAssignmentByResourceSubject("SCOPE#prod")
	assert.False(t, ok)

	_, _, ok = keys.ParseAssignmentByResourceSubject("ASSIGNMENT#ROLE#reader-no-principal-marker")
	assert.False(t, ok)
}

func TestAssignmentByPrincipalRoundTrip(t *testing.T) {
	subject := keys.AssignmentByPrincipalSubject("api://a", "reader")
	assert.Equal(t, "ASSIGNMENT#RESOURCE#api://a#ROLE#reader", subject)
	assert.Equal(t, "ASSIGNMENT#RESOURCE#api://a#ROLE#", keys.AssignmentByPrincipalPrefix("api://a"))
	assert.Equal(t, "ASSIGNMENT#RESOURCE#", keys.AssignmentByPrincipalPrefix(""))

	resource, role, ok := keys.ParseAssignmentByPrincipalSubject(subject)
	assert.True(t, ok)
	assert.Equal(t, "api://a", resource)
	assert.Equal(t, "reader", role)
}

func TestPrincipalPartition(t *testing.T) {
	assert.Equal(t, "PRINCIPAL#arn:p1", keys.PrincipalPartition("arn:p1"))
}

func TestEventKeys(t *testing.T) {
	assert.Equal(t, "EVENT#RESOURCE#api://a", keys.EventPartition("RESOURCE#api://a"))
	assert.Equal(t, "EVENT#", keys.EventPrefix())
	assert.Equal(t, "EVENT#00000000000000000042#evt-1", keys.EventSubject(42, "evt-1"))
}
