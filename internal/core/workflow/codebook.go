package workflow

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_codebook.yaml
var defaultCodeBookYAML []byte

type CodingTarget struct {
	GLAccount  string `yaml:"gl_account"`
	CostCenter string `yaml:"cost_center"`
}

type CodingRule struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	GLAccount  string   `yaml:"gl_account"`
	CostCenter string   `yaml:"cost_center"`
}

// CodeBook is the chart of accounts plus the ordered supplier keyword rules.
type CodeBook struct {
	TaxAccount     string            `yaml:"tax_account"`
	PayableAccount string            `yaml:"payable_account"`
	Accounts       map[string]string `yaml:"accounts"`
	CostCenters    map[string]string `yaml:"cost_centers"`
	Rules          []CodingRule      `yaml:"rules"`
	Default        CodingTarget      `yaml:"default"`
}

// DefaultCodeBook returns the embedded chart of accounts.
func DefaultCodeBook() *CodeBook {
	book, err := LoadCodeBook(bytes.NewReader(defaultCodeBookYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded code book is invalid: %v", err))
	}
	return book
}

// LoadCodeBookFile reads a code book from path; an empty path yields the embedded default.
func LoadCodeBookFile(path string) (*CodeBook, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCodeBook(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open code book: %w", err)
	}
	defer f.Close()
	return LoadCodeBook(f)
}

func LoadCodeBook(r io.Reader) (*CodeBook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var book CodeBook
	if err := dec.Decode(&book); err != nil {
		return nil, fmt.Errorf("decode code book: %w", err)
	}
	if err := book.validate(); err != nil {
		return nil, err
	}
	for i := range book.Rules {
		for j, kw := range book.Rules[i].Keywords {
			book.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &book, nil
}

func (b *CodeBook) validate() error {
	var errs []error
	if b.TaxAccount == "" {
		errs = append(errs, errors.New("tax_account is required"))
	}
	if b.PayableAccount == "" {
		errs = append(errs, errors.New("payable_account is required"))
	}
	for i, rule := range b.Rules {
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("rule %d (%s) has no keywords", i, rule.Name))
		}
		if rule.GLAccount == "" || rule.CostCenter == "" {
			errs = append(errs, fmt.Errorf("rule %d (%s) needs gl_account and cost_center", i, rule.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid code book: %w", err)
	}
	return nil
}

// Lookup returns the coding target for a supplier name. The first rule whose keyword
// is a substring of the lower-cased name wins; otherwise the default applies.
func (b *CodeBook) Lookup(supplierName string) (CodingTarget, error) {
	name := strings.ToLower(supplierName)
	for _, rule := range b.Rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(name, kw) {
				return CodingTarget{GLAccount: rule.GLAccount, CostCenter: rule.CostCenter}, nil
			}
		}
	}
	if b.Default.GLAccount == "" || b.Default.CostCenter == "" {
		return CodingTarget{}, fmt.Errorf("no coding rule matches supplier %q and no default is configured", supplierName)
	}
	return b.Default, nil
}
