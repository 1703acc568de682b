package catalog

import (
	"github.com/spf13/viper"
)

// ChannelBehavior drives how fulfillment and warranty treat orders from
// a sales channel.
type ChannelBehavior struct {
	AutoVerifyWarranty bool
	RequiresProofs     bool
}

type Combo struct {
	DisplayName string
	Components  []string
}

// Catalog holds the immutable product lookup tables: combo expansions,
// channel behaviors and the preactivated product set. Built once at
// startup, safe for concurrent reads.
type Catalog struct {
	combos       map[string]Combo
	channels     map[string]ChannelBehavior
	preactivated map[string]struct{}
}

const (
	ChannelAmazonFBA      = "amazon_fba"
	ChannelAmazonMFN      = "amazon_mfn"
	ChannelFlipkart       = "flipkart"
	ChannelWebsitePayment = "website_payment"
)

func defaultChannels() map[string]ChannelBehavior {
	return map[string]ChannelBehavior{
		ChannelAmazonFBA:      {AutoVerifyWarranty: false, RequiresProofs: true},
		ChannelAmazonMFN:      {AutoVerifyWarranty: false, RequiresProofs: true},
		ChannelFlipkart:       {AutoVerifyWarranty: false, RequiresProofs: true},
		ChannelWebsitePayment: {AutoVerifyWarranty: true, RequiresProofs: false},
	}
}

func defaultCombos() map[string]Combo {
	return map[string]Combo{
		"OFFICE21PP-WIN11PRO": {
			DisplayName: "Office 2021 Pro Plus + Windows 11 Pro",
			Components:  []string{"OFFICE21PP", "WIN11PRO"},
		},
		"OFFICE19PP-WIN10PRO": {
			DisplayName: "Office 2019 Pro Plus + Windows 10 Pro",
			Components:  []string{"OFFICE19PP", "WIN10PRO"},
		},
		"WIN11PRO-WIN11PRO": {
			DisplayName: "Windows 11 Pro (2 PCs)",
			Components:  []string{"WIN11PRO", "WIN11PRO"},
		},
	}
}

func defaultPreactivated() map[string]struct{} {
	return map[string]struct{}{
		"OFFICE365-PREACT": {},
		"WIN11HOME-PREACT": {},
	}
}

func New() *Catalog {
	return &Catalog{
		combos:       defaultCombos(),
		channels:     defaultChannels(),
		preactivated: defaultPreactivated(),
	}
}

// Load reads combo/preactivated overrides from a yaml mapping file and
// merges them over the defaults. Channel behaviors are a closed set and
// cannot be extended from config.
func Load(path string) (*Catalog, error) {
	c := New()
	if path == "" {
		return c, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	type comboEntry struct {
		DisplayName string   `mapstructure:"display_name"`
		Components  []string `mapstructure:"components"`
	}

	var raw struct {
		Combos       map[string]comboEntry `mapstructure:"combos"`
		Preactivated []string              `mapstructure:"preactivated"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, err
	}

	for code, entry := range raw.Combos {
		c.combos[code] = Combo{DisplayName: entry.DisplayName, Components: entry.Components}
	}
	for _, code := range raw.Preactivated {
		c.preactivated[code] = struct{}{}
	}

	return c, nil
}

func (c *Catalog) IsCombo(productCode string) bool {
	_, ok := c.combos[productCode]
	return ok
}

// Components returns the ordered component codes of a combo, or the
// product itself for a plain product.
func (c *Catalog) Components(productCode string) []string {
	if combo, ok := c.combos[productCode]; ok {
		out := make([]string, len(combo.Components))
		copy(out, combo.Components)
		return out
	}
	return []string{productCode}
}

func (c *Catalog) DisplayName(productCode string) string {
	if combo, ok := c.combos[productCode]; ok {
		return combo.DisplayName
	}
	return productCode
}

// ChannelBehavior returns the behavior of a known channel. Unknown
// channels fall back to the strictest marketplace behavior.
func (c *Catalog) ChannelBehavior(channel string) ChannelBehavior {
	if b, ok := c.channels[channel]; ok {
		return b
	}
	return ChannelBehavior{AutoVerifyWarranty: false, RequiresProofs: true}
}

func (c *Catalog) IsPreactivated(productCode string) bool {
	_, ok := c.preactivated[productCode]
	return ok
}
