package changetracker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/accessguard/internal/rbac/changetracker"
)

type fakeEncryptor struct{}

func (fakeEncryptor) Encrypt(plaintext []byte) (string, error) {
	return "ct:" + string(plaintext), nil
}

func (fakeEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if len(ciphertext) < 3 || ciphertext[:3] != "ct:" {
		return nil, errors.New("not ciphertext")
	}
	return []byte(ciphertext[3:]), nil
}

func roleSchema() *changetracker.Node {
	return changetracker.Object(
		changetracker.Field{Name: "resourceName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "roleName", Node: changetracker.Leaf(changetracker.Tracked)},
		changetracker.Field{Name: "internalNote", Node: changetracker.Leaf(changetracker.Untracked)},
	)
}

func TestDiffLeafCreate(t *testing.T) {
	diffs, err := changetracker.Compute(roleSchema(), nil, map[string]any{
		"resourceName": "R2",
		"roleName":     "admin",
		"internalNote": "should not appear",
	}, nil)
	require.NoError(t, err)

	require.Len(t, diffs, 2)
	assert.Equal(t, changetracker.Diff{Path: "/resourceName", OldValue: nil, NewValue: "R2"}, diffs[0])
	assert.Equal(t, changetracker.Diff{Path: "/roleName", OldValue: nil, NewValue: "admin"}, diffs[1])
}

func TestDiffNoChangeStructuralEquality(t *testing.T) {
	entity := map[string]any{"resourceName": "R2", "roleName": "admin"}
	diffs, err := changetracker.Compute(roleSchema(), entity, map[string]any{"resourceName": "R2", "roleName": "admin"}, nil)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiffArrayAlignmentAndTailPadding(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "tags", Node: changetracker.Array(changetracker.Leaf(changetracker.Tracked))},
	)
	baseline := map[string]any{"tags": []any{"a", "b"}}
	current := map[string]any{"tags": []any{"a", "x", "c"}}

	diffs, err := changetracker.Compute(schema, baseline, current, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, changetracker.Diff{Path: "/tags/1", OldValue: "b", NewValue: "x"}, diffs[0])
	assert.Equal(t, changetracker.Diff{Path: "/tags/2", OldValue: nil, NewValue: "c"}, diffs[1])
}

func TestDiffMapAddedRemovedChanged(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "settings", Node: changetracker.Map(changetracker.Leaf(changetracker.Tracked))},
	)
	baseline := map[string]any{"settings": map[string]any{"a": "1", "b": "2"}}
	current := map[string]any{"settings": map[string]any{"a": "1", "c": "3"}}

	diffs, err := changetracker.Compute(schema, baseline, current, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, changetracker.Diff{Path: "/settings/b", OldValue: "2", NewValue: nil}, diffs[0])
	assert.Equal(t, changetracker.Diff{Path: "/settings/c", OldValue: nil, NewValue: "3"}, diffs[1])
}

func TestDiffHierarchicalTrackingPrunesUntaggedParent(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "nested", Node: changetracker.Leaf(changetracker.Untracked)},
	)
	baseline := map[string]any{"nested": map[string]any{"x": 1}}
	current := map[string]any{"nested": map[string]any{"x": 2}}

	diffs, err := changetracker.Compute(schema, baseline, current, nil)
	require.NoError(t, err)
	assert.Empty(t, diffs, "children of an Untracked compound must never surface")
}

func TestDiffEncryptedField(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "secret", Node: changetracker.Leaf(changetracker.Encrypted)},
	)
	baseline := map[string]any{"secret": "secret#1"}
	current := map[string]any{"secret": "secret#2"}

	diffs, err := changetracker.Compute(schema, baseline, current, fakeEncryptor{})
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "/secret", diffs[0].Path)
	assert.Equal(t, "ct:secret#1", diffs[0].OldValue)
	assert.Equal(t, "ct:secret#2", diffs[0].NewValue)
}

func TestDiffNullToValueAndValueToNull(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "owner", Node: changetracker.Object(
			changetracker.Field{Name: "id", Node: changetracker.Leaf(changetracker.Tracked)},
		)},
	)

	diffs, err := changetracker.Compute(schema, nil, map[string]any{"owner": map[string]any{"id": "u1"}}, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, changetracker.Diff{Path: "/owner/id", OldValue: nil, NewValue: "u1"}, diffs[0])

	diffs, err = changetracker.Compute(schema, map[string]any{"owner": map[string]any{"id": "u1"}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, changetracker.Diff{Path: "/owner/id", OldValue: "u1", NewValue: nil}, diffs[0])
}

func TestDiffTokenEscaping(t *testing.T) {
	schema := changetracker.Object(
		changetracker.Field{Name: "a/b~c", Node: changetracker.Leaf(changetracker.Tracked)},
	)
	diffs, err := changetracker.Compute(schema, map[string]any{"a/b~c": "x"}, map[string]any{"a/b~c": "y"}, nil)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "/a~1b~0c", diffs[0].Path)
}
