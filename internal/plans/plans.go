// Package plans maps subscription tiers to per-resource caps and classifies
// usage against those caps.
package plans

import (
	"fmt"

	"estoquefacil/internal/models"
	"estoquefacil/internal/numfmt"
)

// Unlimited is the cap value meaning "no limit".
const Unlimited = -1

// NearLimitRatio is the usage ratio above which a resource is reported as near its cap.
const NearLimitRatio = 0.8

type Resource string

const (
	ResourceProducts  Resource = "produtos"
	ResourceRecipes   Resource = "receitas"
	ResourceSuppliers Resource = "fornecedores"
	ResourceShowcase  Resource = "vitrine"
)

// Resources lists every capped resource in display order.
var Resources = []Resource{ResourceProducts, ResourceRecipes, ResourceSuppliers, ResourceShowcase}

func (r Resource) Valid() bool {
	for _, known := range Resources {
		if r == known {
			return true
		}
	}
	return false
}

// Limits holds the caps of one tier. Monthly and yearly billing share caps.
type Limits map[Resource]int

var tierLimits = map[models.Tier]Limits{
	models.TierFree: {
		ResourceProducts:  50,
		ResourceRecipes:   20,
		ResourceSuppliers: 10,
		ResourceShowcase:  10,
	},
	models.TierProfessional: {
		ResourceProducts:  200,
		ResourceRecipes:   100,
		ResourceSuppliers: 50,
		ResourceShowcase:  50,
	},
	models.TierEnterprise: {
		ResourceProducts:  Unlimited,
		ResourceRecipes:   Unlimited,
		ResourceSuppliers: Unlimited,
		ResourceShowcase:  Unlimited,
	},
}

// LimitsFor returns a copy of the caps for a tier; unknown tiers get the free caps.
func LimitsFor(tier models.Tier) Limits {
	src, ok := tierLimits[tier]
	if !ok {
		src = tierLimits[models.TierFree]
	}
	out := make(Limits, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Cap returns the cap of one resource for a tier.
func Cap(tier models.Tier, resource Resource) int {
	return LimitsFor(tier)[resource]
}

type State string

const (
	StateOK        State = "ok"
	StateNearLimit State = "near_limit"
	StateAtLimit   State = "at_limit"
	StateUnlimited State = "unlimited"
)

type Usage struct {
	Resource  Resource `json:"resource"`
	Used      int      `json:"used"`
	Max       int      `json:"max"`
	Unlimited bool     `json:"unlimited"`
	State     State    `json:"state"`
	// Percent is omitted for unlimited resources.
	Percent *float64 `json:"percent,omitempty"`
	Label   string   `json:"label"`
}

// Blocking reports whether creating one more row must be refused.
func (u Usage) Blocking() bool { return u.State == StateAtLimit }

// Evaluate classifies used against max. An unlimited cap short-circuits all
// ratio math. A non-positive finite cap is always at limit.
func Evaluate(resource Resource, used, max int) Usage {
	u := Usage{Resource: resource, Used: used, Max: max}
	if max == Unlimited {
		u.Unlimited = true
		u.State = StateUnlimited
		u.Label = fmt.Sprintf("%d %s", used, resource)
		return u
	}
	u.Label = fmt.Sprintf("%d/%d %s", used, max, resource)
	if max <= 0 {
		u.State = StateAtLimit
		return u
	}
	ratio := float64(used) / float64(max)
	pct := ratio * 100
	u.Percent = &pct
	switch {
	case used >= max:
		u.State = StateAtLimit
	case ratio > NearLimitRatio:
		u.State = StateNearLimit
	default:
		u.State = StateOK
	}
	return u
}

// PercentLabel renders the usage percentage for display, empty when unlimited.
func (u Usage) PercentLabel() string {
	if u.Percent == nil {
		return ""
	}
	return numfmt.FormatPercent(*u.Percent)
}
