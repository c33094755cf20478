package props

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeUnionsDicts(t *testing.T) {
	base := Dict{"a": Int(1), "b": Int(2)}
	overlay := Dict{"b": Int(20), "c": Int(30)}

	got := Merge(base, overlay)

	assert.Equal(t, Dict{"a": Int(1), "b": Int(20), "c": Int(30)}, got)
	assert.Equal(t, Dict{"a": Int(1), "b": Int(2)}, base, "base must not be modified")
}

func TestMergeNestedDicts(t *testing.T) {
	base := Dict{"http": Dict{"port": Int(80), "vhost": String("a")}}
	overlay := Dict{"http": Dict{"port": Int(8080), "ssl": Bool(true)}}

	got := Merge(base, overlay)

	assert.Equal(t, Dict{"http": Dict{
		"port":  Int(8080),
		"vhost": String("a"),
		"ssl":   Bool(true),
	}}, got)
}

func TestMergeNonDictOverrides(t *testing.T) {
	assert.Equal(t, String("new"), Merge(String("old"), String("new")))
	assert.Equal(t, String("new"), Merge(Dict{"a": Int(1)}, String("new")))
	assert.Equal(t, Dict{"a": Int(1)}, Merge(String("old"), Dict{"a": Int(1)}))
}

func TestMergeTwiceIsIdempotentUnion(t *testing.T) {
	first := Dict{"a": String("1"), "shared": String("first")}
	second := Dict{"b": String("2"), "shared": String("second")}

	got := Merge(Merge(Dict{}, first), second)
	again := Merge(got, second)

	assert.Equal(t, Dict{"a": String("1"), "b": String("2"), "shared": String("second")}, got)
	assert.Equal(t, got, again)
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(Null{}))
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "www1", Text(String("www1")))
	assert.Equal(t, "42", Text(Int(42)))
	assert.Equal(t, "true", Text(Bool(true)))
	assert.Equal(t, `["a","b"]`, Text(Strings("a", "b")))
	assert.Equal(t, `{"k":"v"}`, Text(Dict{"k": String("v")}))
}
