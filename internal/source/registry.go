package source

import (
	"fmt"
	"sort"
)

// Factory builds a Source from a Spec. client carries retry, rate limiting and logging.
type Factory func(spec Spec, client *Client) (Source, error)

var factories = map[string]Factory{
	"awattar":        NewAwattar,
	"energycharts":   NewEnergyCharts,
	"energyforecast": NewEnergyforecast,
	"entsoe":         NewEntsoe,
	"file":           NewFile,
	"gridstatus":     NewGridStatus,
	"smard":          NewSMARD,
	"smartenergy":    NewSmartEnergy,
	"tibber":         NewTibber,
}

func Registered(provider string) bool {
	_, ok := factories[provider]
	return ok
}

func Providers() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the source for spec.Provider.
func New(spec Spec, client *Client) (Source, error) {
	f, ok := factories[spec.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupported, spec.Provider)
	}
	if client == nil {
		client = NewClient(ClientOptions{})
	}
	return f(spec, client)
}
