package expr_test

import (
	"testing"
	"time"

	"caseflow/domain/expr"

	. "github.com/onsi/gomega"
)

type fakeContext struct {
	values  map[string]interface{}
	now     time.Time
	complex func(name string, args []expr.Node) (interface{}, error)
}

func (c *fakeContext) Value(path string) (interface{}, bool) {
	v, found := c.values[path]
	return v, found
}

func (c *fakeContext) Now() time.Time {
	return c.now
}

func (c *fakeContext) ResolveComplex(name string, args []expr.Node) (interface{}, error) {
	if c.complex != nil {
		return c.complex(name, args)
	}
	return nil, nil
}

func TestParse(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should parse identifiers, literals, calls, index and binary operators", func(t *testing.T) {
		node, err := expr.Parse("Boop.Beep")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Ident{Path: "Boop.Beep"}))

		node, err = expr.Parse("3.5")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Number{Value: 3.5}))

		node, err = expr.Parse("true")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Bool{Value: true}))

		node, err = expr.Parse("'hello, world'")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Text{Value: "hello, world"}))

		node, err = expr.Parse("addDays(Boop.Beep, 3)")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Call{Name: "addDays", Args: []expr.Node{
			&expr.Ident{Path: "Boop.Beep"}, &expr.Number{Value: 3},
		}}))

		node, err = expr.Parse("Items[0]")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Index{Target: &expr.Ident{Path: "Items"}, Key: &expr.Number{Value: 0}}))

		node, err = expr.Parse("Beep == 3")
		Expect(err).To(BeNil())
		Expect(node).To(Equal(&expr.Binary{Op: expr.OpEqual,
			Left: &expr.Ident{Path: "Beep"}, Right: &expr.Number{Value: 3}}))
	})

	t.Run("should reject malformed expressions", func(t *testing.T) {
		_, err := expr.Parse("")
		Expect(err).ToNot(BeNil())

		_, err = expr.Parse("addDays(Boop")
		Expect(err).ToNot(BeNil())

		_, err = expr.Parse("a b")
		Expect(err).ToNot(BeNil())
	})

	t.Run("template call argument is consumed raw, not re-tokenized", func(t *testing.T) {
		node, err := expr.Parse("template({{a}}, ({{b}}))")
		Expect(err).To(BeNil())
		tmpl, ok := node.(*expr.Template)
		Expect(ok).To(BeTrue())
		Expect(tmpl.Source).To(Equal("{{a}}, ({{b}})"))
	})
}

func TestEval(t *testing.T) {
	RegisterTestingT(t)

	now := time.Date(2021, 5, 6, 12, 30, 0, 0, time.UTC)
	ctx := &fakeContext{now: now, values: map[string]interface{}{
		"Boop.Beep": time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
		"Oink":      float64(4),
		"Name":      "rabbit",
		"Tags":      []interface{}{"a", "b"},
	}}

	t.Run("now is a reserved identifier", func(t *testing.T) {
		node, err := expr.Parse("now")
		Expect(err).To(BeNil())
		v, err := node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal(now))
	})

	t.Run("builtin calls evaluate with evaluated arguments", func(t *testing.T) {
		node, err := expr.Parse("addDays(Boop.Beep, Oink)")
		Expect(err).To(BeNil())
		v, err := node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal(time.Date(2021, 5, 5, 0, 0, 0, 0, time.UTC)))

		node, err = expr.Parse("if(contains(Tags, 'a'), 'yes', 'no')")
		Expect(err).To(BeNil())
		v, err = node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal("yes"))
	})

	t.Run("binary operators", func(t *testing.T) {
		node, err := expr.Parse("Oink == 4")
		Expect(err).To(BeNil())
		v, err := node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal(true))

		node, err = expr.Parse("Oink <= 3")
		Expect(err).To(BeNil())
		v, err = node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal(false))

		node, err = expr.Parse("Oink >= 3")
		Expect(err).To(BeNil())
		v, err = node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal(true))
	})

	t.Run("index access over arrays", func(t *testing.T) {
		node, err := expr.Parse("Tags[1]")
		Expect(err).To(BeNil())
		v, err := node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(Equal("b"))

		node, err = expr.Parse("Tags[9]")
		Expect(err).To(BeNil())
		v, err = node.Eval(ctx)
		Expect(err).To(BeNil())
		Expect(v).To(BeNil())
	})

	t.Run("non-builtin calls delegate to the complex resolver", func(t *testing.T) {
		resolved := false
		c := &fakeContext{now: now, complex: func(name string, args []expr.Node) (interface{}, error) {
			resolved = true
			Expect(name).To(Equal("find"))
			Expect(len(args)).To(Equal(2))
			return "resolved", nil
		}}
		node, err := expr.Parse("find(Boop, Beep == 3)")
		Expect(err).To(BeNil())
		v, err := node.Eval(c)
		Expect(err).To(BeNil())
		Expect(resolved).To(BeTrue())
		Expect(v).To(Equal("resolved"))
	})
}

func TestProperties(t *testing.T) {
	RegisterTestingT(t)

	t.Run("builtin calls contribute the union of their arguments", func(t *testing.T) {
		node, err := expr.Parse("addDays(Boop.Beep, Oink)")
		Expect(err).To(BeNil())
		Expect(node.Properties()).To(Equal([]string{"Boop.Beep", "Oink"}))
	})

	t.Run("non-builtin calls contribute one opaque complex dependency", func(t *testing.T) {
		node, err := expr.Parse("find(Boop, Beep == 3)")
		Expect(err).To(BeNil())
		props := node.Properties()
		Expect(len(props)).To(Equal(1))
		Expect(props[0]).To(Equal("find(Boop, Beep == 3)"))
	})

	t.Run("duplicated identifiers are deduped", func(t *testing.T) {
		node, err := expr.Parse("concat(Name, Name, Oink)")
		Expect(err).To(BeNil())
		Expect(node.Properties()).To(Equal([]string{"Name", "Oink"}))
	})

	t.Run("now contributes nothing", func(t *testing.T) {
		node, err := expr.Parse("now")
		Expect(err).To(BeNil())
		Expect(node.Properties()).To(BeEmpty())
	})
}

func TestTemplate(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should render literals and placeholders in order", func(t *testing.T) {
		tmpl, err := expr.ParseTemplate("{{a}} is a {{b}}, yes?")
		Expect(err).To(BeNil())

		out, err := tmpl.Render(&fakeContext{values: map[string]interface{}{"a": "rabbit", "b": "donkey"}})
		Expect(err).To(BeNil())
		Expect(out).To(Equal("rabbit is a donkey, yes?"))
	})

	t.Run("placeholders may hold full expressions", func(t *testing.T) {
		tmpl, err := expr.ParseTemplate("total: {{concat('n=', Oink)}}")
		Expect(err).To(BeNil())

		out, err := tmpl.Render(&fakeContext{values: map[string]interface{}{"Oink": float64(4)}})
		Expect(err).To(BeNil())
		Expect(out).To(Equal("total: n=4"))
	})

	t.Run("template without placeholders renders verbatim", func(t *testing.T) {
		tmpl, err := expr.ParseTemplate("plain text")
		Expect(err).To(BeNil())
		out, err := tmpl.Render(&fakeContext{})
		Expect(err).To(BeNil())
		Expect(out).To(Equal("plain text"))
	})

	t.Run("properties of a template union its placeholder dependencies", func(t *testing.T) {
		tmpl, err := expr.ParseTemplate("{{a}} and {{b}} and {{a}}")
		Expect(err).To(BeNil())
		Expect(tmpl.Properties()).To(Equal([]string{"a", "b"}))
	})
}

func TestCache(t *testing.T) {
	RegisterTestingT(t)

	t.Run("parse results are memoized by source text", func(t *testing.T) {
		cache := expr.NewCache()
		first, err := cache.Parse("Boop.Beep == 3")
		Expect(err).To(BeNil())
		second, err := cache.Parse("Boop.Beep == 3")
		Expect(err).To(BeNil())
		Expect(first == second).To(BeTrue())

		t1, err := cache.ParseTemplate("{{a}}")
		Expect(err).To(BeNil())
		t2, err := cache.ParseTemplate("{{a}}")
		Expect(err).To(BeNil())
		Expect(t1 == t2).To(BeTrue())
	})

	t.Run("parse errors are not cached", func(t *testing.T) {
		cache := expr.NewCache()
		_, err := cache.Parse("addDays(")
		Expect(err).ToNot(BeNil())
		_, err = cache.Parse("addDays(")
		Expect(err).ToNot(BeNil())
	})
}
