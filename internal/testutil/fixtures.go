// Package testutil holds fixtures shared by backend, store, and engine
// tests.
package testutil

import (
	"fmt"

	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// BarTable builds Bar{bar, count, foo?} over Foo{barShort?, barFloat,
// barString?, barBool, barEnum, objectArray?[Element]}. count is stored
// under the record key "n".
func BarTable() *schema.Table {
	element := schema.NewBuilder("Element").
		Scalar("name", schema.ScalarString).
		Scalar("weight", schema.ScalarInt, schema.Nullable()).
		MustBuild()

	foo := schema.NewBuilder("Foo").
		Scalar("barShort", schema.ScalarInt, schema.Nullable()).
		Scalar("barFloat", schema.ScalarFloat).
		Scalar("barString", schema.ScalarString, schema.Nullable()).
		Boolean("barBool").
		Enum("barEnum", []string{"FOO", "BAR", "BAZ", "QUX"}).
		ObjectList("objectArray", element, schema.Nullable()).
		MustBuild()

	return schema.NewBuilder("Bar").
		Scalar("bar", schema.ScalarString).
		Scalar("count", schema.ScalarInt, schema.Accessor("n")).
		Object("foo", foo, schema.Nullable()).
		MustBuild()
}

// BarJSON is the non-null record set as JSON bodies, keyed by id.
var BarJSON = []string{
	`{"id":"1","bar":"testatest","n":1,"foo":{"barShort":12,"barFloat":1.5,"barString":"testatest","barBool":true,"barEnum":"BAR","objectArray":[{"name":"x","weight":1}]}}`,
	`{"id":"2","bar":"testbtest","n":2,"foo":{"barShort":14,"barFloat":2.25,"barString":"testbtest","barBool":true,"barEnum":"BAZ","objectArray":[{"name":"y","weight":null},{"name":"z","weight":5}]}}`,
	`{"id":"3","bar":"testctest","n":3,"foo":{"barShort":13,"barFloat":3,"barString":"test%_test","barBool":false,"barEnum":"FOO","objectArray":[]}}`,
}

// NullJSON adds records with null fields and a null parent object.
var NullJSON = []string{
	`{"id":"4","bar":"testdtest","n":4,"foo":{"barShort":null,"barFloat":0.5,"barString":null,"barBool":false,"barEnum":"QUX","objectArray":null}}`,
	`{"id":"5","bar":"testetest","n":5,"foo":null}`,
}

// BarRecords decodes BarJSON.
func BarRecords() []ir.Object {
	return decodeAll(BarJSON)
}

// NullableBarRecords decodes BarJSON followed by NullJSON.
func NullableBarRecords() []ir.Object {
	return decodeAll(append(append([]string(nil), BarJSON...), NullJSON...))
}

// IDs returns the "id" of each record in order.
func IDs(records []ir.Object) []string {
	out := make([]string, len(records))
	for i, r := range records {
		id, _ := r.Get("id").(ir.String)
		out[i] = string(id)
	}
	return out
}

func decodeAll(bodies []string) []ir.Object {
	out := make([]ir.Object, len(bodies))
	for i, body := range bodies {
		obj, err := ir.DecodeObject([]byte(body))
		if err != nil {
			panic(fmt.Sprintf("testutil: record %d: %v", i, err))
		}
		out[i] = obj
	}
	return out
}
