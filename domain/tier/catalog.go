package tier

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/applelectricals/microjpeg/domain/category"
)

// Catalog validation errors.
var (
	ErrNoTiers         = errors.New("tier catalog: no tiers defined")
	ErrDuplicateTier   = errors.New("tier catalog: duplicate tier id")
	ErrUnknownFallback = errors.New("tier catalog: fallback tier not defined")
	ErrUnknownAlias    = errors.New("tier catalog: alias targets undefined tier")
	ErrInvalidPolicy   = errors.New("tier catalog: invalid metering policy")
	ErrLabelConflict   = errors.New("tier catalog: plan label maps to two tiers")
)

// DefaultBillingCycles are the suffixes a plan label may carry. Billing
// cycle affects price, not capability.
var DefaultBillingCycles = []string{"monthly", "yearly", "annual", "annually", "quarterly"}

// CatalogConfig describes how to build a Catalog.
type CatalogConfig struct {
	Tiers []Tier
	// Aliases maps extra plan labels (legacy names, provider price refs)
	// to tier IDs.
	Aliases map[string]ID
	// BillingCycles are expanded into "<label>-<cycle>" entries for every
	// tier ID and alias. Nil uses DefaultBillingCycles.
	BillingCycles []string
	// Fallback is returned for unknown or empty labels. Defaults to Free.
	Fallback ID
	// AnonymousTier is returned for anonymous sessions without a label.
	// Defaults to Anonymous when defined, else Fallback.
	AnonymousTier ID
}

// Catalog resolves plan labels to tiers. Every label is expanded into an
// explicit table at construction; resolution is a map lookup.
type Catalog struct {
	tiers     map[ID]Tier
	ordered   []Tier
	labels    map[string]ID
	fallback  ID
	anonymous ID
}

// NewCatalog validates cfg and builds the label table.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if len(cfg.Tiers) == 0 {
		return nil, ErrNoTiers
	}

	c := &Catalog{
		tiers:  make(map[ID]Tier, len(cfg.Tiers)),
		labels: make(map[string]ID),
	}

	for _, t := range cfg.Tiers {
		if _, dup := c.tiers[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTier, t.ID)
		}
		if !t.Policy.Valid() {
			return nil, fmt.Errorf("%w: tier %s has %q", ErrInvalidPolicy, t.ID, t.Policy)
		}
		c.tiers[t.ID] = t
		c.ordered = append(c.ordered, t)
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].Rank < c.ordered[j].Rank
	})

	c.fallback = cfg.Fallback
	if c.fallback == "" {
		c.fallback = Free
	}
	if _, ok := c.tiers[c.fallback]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFallback, c.fallback)
	}

	c.anonymous = cfg.AnonymousTier
	if c.anonymous == "" {
		if _, ok := c.tiers[Anonymous]; ok {
			c.anonymous = Anonymous
		} else {
			c.anonymous = c.fallback
		}
	}
	if _, ok := c.tiers[c.anonymous]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFallback, c.anonymous)
	}

	cycles := cfg.BillingCycles
	if cycles == nil {
		cycles = DefaultBillingCycles
	}

	for id := range c.tiers {
		if err := c.addLabel(string(id), id, cycles); err != nil {
			return nil, err
		}
	}
	for label, id := range cfg.Aliases {
		if _, ok := c.tiers[id]; !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownAlias, label, id)
		}
		if err := c.addLabel(label, id, cycles); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Catalog) addLabel(label string, id ID, cycles []string) error {
	base := NormalizeLabel(label)
	if base == "" {
		return nil
	}
	entries := []string{base}
	for _, cycle := range cycles {
		entries = append(entries, base+"-"+NormalizeLabel(cycle))
	}
	for _, e := range entries {
		if existing, ok := c.labels[e]; ok && existing != id {
			return fmt.Errorf("%w: %q (%s, %s)", ErrLabelConflict, e, existing, id)
		}
		c.labels[e] = id
	}
	return nil
}

// NormalizeLabel lower-cases a plan label and unifies separators.
func NormalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.NewReplacer("_", "-", " ", "-").Replace(l)
	return l
}

// Resolve returns the tier for a plan label. Unknown or empty labels
// degrade to the fallback tier; resolution never fails.
func (c *Catalog) Resolve(label string) Tier {
	if id, ok := c.labels[NormalizeLabel(label)]; ok {
		return c.tiers[id]
	}
	return c.tiers[c.fallback]
}

// ResolveFor resolves a label for an identity. Anonymous sessions without
// a plan label get the anonymous tier.
func (c *Catalog) ResolveFor(label string, anonymous bool) Tier {
	if anonymous && NormalizeLabel(label) == "" {
		return c.tiers[c.anonymous]
	}
	return c.Resolve(label)
}

// Get returns a tier by ID.
func (c *Catalog) Get(id ID) (Tier, bool) {
	t, ok := c.tiers[id]
	return t, ok
}

// Tiers returns all tiers ordered by rank.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Next returns the tier one rank above id.
func (c *Catalog) Next(id ID) (Tier, bool) {
	cur, ok := c.tiers[id]
	if !ok {
		return Tier{}, false
	}
	for _, t := range c.ordered {
		if t.Rank > cur.Rank {
			return t, true
		}
	}
	return Tier{}, false
}

// CheapestWith returns the lowest-ranked tier above id that enables cap.
func (c *Catalog) CheapestWith(id ID, cp Capability) (Tier, bool) {
	cur, ok := c.tiers[id]
	if !ok {
		return Tier{}, false
	}
	for _, t := range c.ordered {
		if t.Rank > cur.Rank && t.Has(cp) {
			return t, true
		}
	}
	return Tier{}, false
}

// CheapestFitting returns the lowest-ranked tier above id whose ceiling for
// category c admits a file of size bytes.
func (c *Catalog) CheapestFitting(id ID, cat category.Category, size int64) (Tier, bool) {
	cur, ok := c.tiers[id]
	if !ok {
		return Tier{}, false
	}
	for _, t := range c.ordered {
		if t.Rank > cur.Rank && size <= t.CeilingFor(cat) {
			return t, true
		}
	}
	return Tier{}, false
}

// Labels returns the number of resolvable plan labels.
func (c *Catalog) Labels() int {
	return len(c.labels)
}

// DefaultCatalog builds the catalog from DefaultTiers.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(CatalogConfig{Tiers: DefaultTiers()})
	if err != nil {
		panic(err)
	}
	return c
}
