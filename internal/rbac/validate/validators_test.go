package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terraconstructs/accessguard/internal/rbac/validate"
)

func TestDefaultValidatorsAcceptOpaqueNames(t *testing.T) {
	v := validate.Default()
	assert.True(t, v.IsValidResourceName("api://service-a"))
	assert.True(t, v.IsValidScopeName("prod"))
	assert.True(t, v.IsValidRoleName("reader"))
}

func TestDefaultValidatorsRejectEmptyAndSeparator(t *testing.T) {
	v := validate.Default()
	assert.False(t, v.IsValidResourceName(""))
	assert.False(t, v.IsValidResourceName("has space"))
	assert.False(t, v.IsValidResourceName("has#hash"))
}

func TestDefaultScope(t *testing.T) {
	v := validate.Default()
	assert.True(t, v.IsDefaultScope(validate.DefaultScopeName))
	assert.False(t, v.IsDefaultScope("prod"))
}
