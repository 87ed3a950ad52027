// Package catalog holds the fertiliser products the recommender may suggest.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/xhad/soilreport/internal/models"
)

//go:embed products.yaml
var defaultProducts []byte

// Legend explains the numeric columns of Render to the model.
const Legend = "Each product line reads name,\"description\",Calcium,Magnesium,Nitrogen,Phosphorus,Potassium,Sulphur. " +
	"The six numbers after each product's description are the ratios of Calcium, Magnesium, Nitrogen, Phosphorus, Potassium and Sulphur respectively."

type Catalog struct {
	products []models.Product
}

type catalogFile struct {
	Products []models.Product `yaml:"products"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultProducts)
}

// Load reads a catalog file, falling back to the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %v", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %v", err)
	}
	if len(file.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}

	c := &Catalog{products: make([]models.Product, 0, len(file.Products))}
	seen := make(map[string]bool, len(file.Products))
	for i, p := range file.Products {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("product %d has no name", i+1)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate product %q", p.Name)
		}
		for _, v := range p.Ratios.Values() {
			if v < 0 || v > 100 {
				return nil, fmt.Errorf("product %q has ratio %v outside 0-100", p.Name, v)
			}
		}
		desc, err := cleanDescription(p.Description)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", p.Name, err)
		}
		p.Description = desc
		seen[p.Name] = true
		c.products = append(c.products, p)
	}
	return c, nil
}

// cleanDescription drops markup and entities left over from the product pages.
func cleanDescription(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("failed to parse description: %w", err)
	}
	text := strings.ReplaceAll(doc.Text(), "\u200b", "")
	return strings.Join(strings.Fields(text), " "), nil
}

func (c *Catalog) Len() int {
	return len(c.products)
}

// Render lays the catalog out one product per line for the recommendation prompt.
func (c *Catalog) Render() string {
	var b strings.Builder
	for _, p := range c.products {
		b.WriteString(FormatProduct(p))
		b.WriteByte('\n')
	}
	return b.String()
}

func FormatProduct(p models.Product) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(`,"`)
	b.WriteString(strings.ReplaceAll(p.Description, `"`, `'`))
	b.WriteByte('"')
	for _, v := range p.Ratios.Values() {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return b.String()
}
