package economy

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/gridworks/internal/catalog"
)

// News is a market event affecting live production of one resource until
// the next repricing.
type News struct {
	Resource catalog.ResourceKey `json:"resource"`
	Effect   float64             `json:"effect"` // fractional change, e.g. -0.2
	OnInput  bool                `json:"on_input"`
	Headline string              `json:"headline"`
	Epoch    uint64              `json:"epoch"`
}

// rollNews replaces the current headline. With probability NewsChance a
// resource is picked and given a non-zero effect bounded by NewsMaxEffect.
func (m *Market) rollNews(cat *catalog.Catalog, seed int64) {
	m.Headline = nil
	if m.draw(seed, "", "news") >= m.tuning.NewsChance {
		return
	}
	keys := cat.ResourceKeys()
	if len(keys) == 0 {
		return
	}
	pick := keys[int(m.draw(seed, "", "news-pick")*float64(len(keys)))%len(keys)]
	effect := (2*m.draw(seed, pick, "news-effect") - 1) * m.tuning.NewsMaxEffect
	effect = math.Round(effect*100) / 100
	if effect == 0 {
		effect = 0.01
	}
	onInput := m.draw(seed, pick, "news-side") < 0.5

	m.Headline = &News{
		Resource: pick,
		Effect:   effect,
		OnInput:  onInput,
		Headline: headline(pick, effect, onInput),
		Epoch:    m.Epoch,
	}
	slog.Info("market news", "resource", pick, "effect", effect, "on_input", onInput)
}

func headline(res catalog.ResourceKey, effect float64, onInput bool) string {
	pct := int(math.Round(math.Abs(effect) * 100))
	switch {
	case !onInput && effect > 0:
		return fmt.Sprintf("%s output surges %d%% on new techniques", res, pct)
	case !onInput:
		return fmt.Sprintf("%s output falls %d%% amid disruptions", res, pct)
	case effect > 0:
		return fmt.Sprintf("Plants burn %d%% more %s after a quality scare", pct, res)
	default:
		return fmt.Sprintf("Efficiency drive cuts %s use by %d%%", res, pct)
	}
}

// NewsTables returns the live input and output factors of the current news.
func (m *Market) NewsTables() (input, output map[catalog.ResourceKey]float64) {
	if m.Headline == nil {
		return nil, nil
	}
	t := map[catalog.ResourceKey]float64{m.Headline.Resource: m.Headline.Effect}
	if m.Headline.OnInput {
		return t, nil
	}
	return nil, t
}
