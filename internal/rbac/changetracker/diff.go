package changetracker

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// Diff is one property-level change, keyed by its RFC 6901 JSON Pointer
// path into the entity's projection.
type Diff struct {
	Path     string `json:"path"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Encryptor is the collaborator Encrypted fields are run through: plaintext
// is never recorded in a Diff, only the ciphertext both sides produce.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// Compute walks schema against baseline and current projections (each a
// JSON-shaped value: map[string]any, []any, a primitive, or nil) and returns
// the ordered list of diffs. The traversal is depth-first in declared-field
// order, arrays by index, maps by sorted key -- the same order every call
// against a given schema produces, so callers never need to sort again.
func Compute(schema *Node, baseline, current any, enc Encryptor) ([]Diff, error) {
	var diffs []Diff
	if err := walk(schema, "", baseline, current, enc, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

func walk(node *Node, path string, baseline, current any, enc Encryptor, diffs *[]Diff) error {
	if node == nil || node.Mark == Untracked {
		return nil
	}
	if node.Mark == Encrypted {
		return walkEncrypted(path, baseline, current, enc, diffs)
	}
	switch node.Kind {
	case KindObject:
		return walkObject(node, path, baseline, current, enc, diffs)
	case KindArray:
		return walkArray(node, path, baseline, current, enc, diffs)
	case KindMap:
		return walkMap(node, path, baseline, current, enc, diffs)
	default:
		return walkLeaf(path, baseline, current, diffs)
	}
}

func walkObject(node *Node, path string, baseline, current any, enc Encryptor, diffs *[]Diff) error {
	for _, f := range node.Fields {
		childPath, err := appendToken(path, f.Name)
		if err != nil {
			return err
		}
		if err := walk(f.Node, childPath, fieldValue(baseline, f.Name), fieldValue(current, f.Name), enc, diffs); err != nil {
			return err
		}
	}
	return nil
}

func walkArray(node *Node, path string, baseline, current any, enc Encryptor, diffs *[]Diff) error {
	bs := toSlice(baseline)
	cs := toSlice(current)
	n := len(bs)
	if len(cs) > n {
		n = len(cs)
	}
	for i := 0; i < n; i++ {
		var bv, cv any
		if i < len(bs) {
			bv = bs[i]
		}
		if i < len(cs) {
			cv = cs[i]
		}
		childPath, err := appendToken(path, fmt.Sprintf("%d", i))
		if err != nil {
			return err
		}
		if err := walk(node.Element, childPath, bv, cv, enc, diffs); err != nil {
			return err
		}
	}
	return nil
}

func walkMap(node *Node, path string, baseline, current any, enc Encryptor, diffs *[]Diff) error {
	bm := toMap(baseline)
	cm := toMap(current)

	keySet := make(map[string]struct{}, len(bm)+len(cm))
	for k := range bm {
		keySet[k] = struct{}{}
	}
	for k := range cm {
		keySet[k] = struct{}{}
	}
	keyList := make([]string, 0, len(keySet))
	for k := range keySet {
		keyList = append(keyList, k)
	}
	sort.Strings(keyList)

	for _, k := range keyList {
		childPath, err := appendToken(path, k)
		if err != nil {
			return err
		}
		if err := walk(node.Element, childPath, bm[k], cm[k], enc, diffs); err != nil {
			return err
		}
	}
	return nil
}

func walkLeaf(path string, baseline, current any, diffs *[]Diff) error {
	if !reflect.DeepEqual(baseline, current) {
		*diffs = append(*diffs, Diff{Path: path, OldValue: baseline, NewValue: current})
	}
	return nil
}

func walkEncrypted(path string, baseline, current any, enc Encryptor, diffs *[]Diff) error {
	if reflect.DeepEqual(baseline, current) {
		return nil
	}
	bCipher, err := encryptLeaf(baseline, enc)
	if err != nil {
		return fmt.Errorf("encrypt baseline at %s: %w", path, err)
	}
	cCipher, err := encryptLeaf(current, enc)
	if err != nil {
		return fmt.Errorf("encrypt current at %s: %w", path, err)
	}
	*diffs = append(*diffs, Diff{Path: path, OldValue: bCipher, NewValue: cCipher})
	return nil
}

func encryptLeaf(v any, enc Encryptor) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, _ := v.(string)
	return enc.Encrypt([]byte(s))
}

func fieldValue(v any, name string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[name]
}

func toSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func toMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// appendToken extends a JSON Pointer with one RFC 6901 token (escaping "~"
// and "/" per RFC 6901) and validates the result by parsing it back through
// jsonpointer.New rather than trusting hand-rolled escaping alone.
func appendToken(path, token string) (string, error) {
	escaped := strings.NewReplacer("~", "~0", "/", "~1").Replace(token)
	full := path + "/" + escaped
	if _, err := jsonpointer.New(full); err != nil {
		return "", fmt.Errorf("build json pointer %q: %w", full, err)
	}
	return full, nil
}
