package key_test

import (
	"fmt"

	"github.com/jonwraymond/cacheops/key"
)

func ExampleBuildKey() {
	// Nil segments are dropped silently.
	fmt.Println(key.BuildKey("user", nil, "active", nil, true))
	// Output:
	// user:active:true
}

func ExampleGenerator_ForEntity() {
	g := key.NewGenerator()

	k, _ := g.ForEntity("User", map[string]any{"id": 123, "name": "ada"}, nil)
	fmt.Println(k)
	// Output:
	// User:id:123
}

func ExampleGenerator_Pattern() {
	g := key.NewGenerator()

	fmt.Println(g.Pattern("User"))
	fmt.Println(g.Pattern("User", "query"))
	// Output:
	// User:*
	// User:query:*
}

func ExampleGenerator_ForCount() {
	g := key.NewGenerator()

	// Key-wise permutations of the same options hash identically.
	k1, _ := g.ForCount("User", map[string]any{"active": true, "region": "eu"})
	k2, _ := g.ForCount("User", map[string]any{"region": "eu", "active": true})
	fmt.Println(k1 == k2)
	// Output:
	// true
}
