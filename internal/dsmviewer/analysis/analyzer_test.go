package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

var shopSources = map[string]string{
	"go.mod": "module example.com/shop\n\ngo 1.24\n",
	"main.go": `package main

import "example.com/shop/internal/cart"

func main() {
	c := cart.New()
	_ = c
}
`,
	"internal/cart/cart.go": `package cart

import (
	"fmt"

	"example.com/shop/internal/money"
)

type Cart struct {
	Total money.Amount
	items []Item
}

type Item struct {
	Price money.Amount
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) Add(i Item) {
	c.items = append(c.items, i)
}

func Describe(c *Cart) string {
	return fmt.Sprint(c.Total)
}
`,
	"internal/cart/cart_test.go": "package cart\n\ntype helper struct{}\n",
	"internal/money/money.go":    "package money\n\ntype Amount int64\n",
	"internal/money/broken.go":   "package money\n\nfunc (\n",
	"internal/mocks/fake.go":     "package mocks\n\ntype Fake struct{}\n",
	"vendor/lib/lib.go":          "package lib\n\ntype Lib struct{}\n",
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shop")
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestAnalyzeGoTree(t *testing.T) {
	root := writeTree(t, shopSources)
	cfg := config.DefaultConfig
	cfg.ExcludedNames = []string{"**/mocks", "**/mocks/**"}
	m := model.New(model.WithStrictWeights(true))

	report, err := NewAnalyzer(m, &cfg, nil).Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Files)
	assert.Equal(t, 2, report.Excluded)
	assert.Positive(t, report.External)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Err(), ErrSyntax)

	el, rel := m.Elements(), m.Relations()
	find := func(name string) *model.Element {
		e := el.FindElementByFullName(name)
		require.NotNil(t, e, name)
		return e
	}
	cart := find("shop.internal.cart")
	money := find("shop.internal.money")
	assert.Equal(t, "package", cart.Type())
	assert.Equal(t, "struct", find("shop.internal.cart.Cart").Type())
	assert.Equal(t, "function", find("shop.internal.cart.New").Type())
	assert.Equal(t, "type", find("shop.internal.money.Amount").Type())
	assert.Equal(t, "", find("shop.internal").Type())
	assert.Nil(t, el.FindElementByFullName("shop.internal.mocks"))
	assert.Nil(t, el.FindElementByFullName("shop.vendor"))
	assert.Nil(t, el.FindElementByFullName("shop.internal.cart.helper"))

	assert.NotNil(t, rel.FindRelation(cart.ID(), money.ID(), "import"))
	assert.NotNil(t, rel.FindRelation(find("shop").ID(), cart.ID(), "import"))
	assert.NotNil(t, rel.FindRelation(find("shop.main").ID(), find("shop.internal.cart.New").ID(), "call"))
	itemUse := rel.FindRelation(find("shop.internal.cart.Cart").ID(), find("shop.internal.cart.Item").ID(), "use")
	require.NotNil(t, itemUse)
	assert.Equal(t, 2, itemUse.Weight())

	// import + Cart.Total + Item.Price
	assert.Equal(t, 3, cart.AggregatedWeight(money.ID()))
	assert.Zero(t, money.AggregatedWeight(cart.ID()))

	assert.Equal(t, []model.MetaDataItem{
		{Name: "root", Value: root},
		{Name: "module", Value: "example.com/shop"},
		{Name: "files", Value: "5"},
	}, m.MetaDataGroupItems("analyzer"))
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	root := writeTree(t, shopSources)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer(model.New(), nil, nil).Analyze(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestionIsolatesFailures(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.ExcludedNames = []string{"gen/**"}
	m := model.New()
	a := NewAnalyzer(m, &cfg, nil)

	assert.NotNil(t, a.AddElement("app.Service", "struct", "test"))
	assert.NotNil(t, a.AddElement("app.Repo", "struct", "test"))
	assert.Nil(t, a.AddElement("gen.Client", "struct", "test"))
	assert.Nil(t, a.AddElement("app..Broken", "struct", "test"))

	assert.NotNil(t, a.AddRelation("app.Service", "app.Repo", "use", 2, "test"))
	assert.Nil(t, a.AddRelation("app.Service", "gen.Client", "use", 1, "test"))
	assert.Nil(t, a.AddRelation("app.Service", "app.Missing", "use", 1, "test"))

	assert.Equal(t, 2, a.report.Excluded)
	require.Len(t, a.report.Failures, 2)
	assert.ErrorIs(t, a.report.Failures[0], model.ErrInvalidName)
	assert.ErrorIs(t, a.report.Failures[1], model.ErrNotFound)
	assert.Equal(t, 3, m.Elements().ElementCount())
}
