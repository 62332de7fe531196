package enrich

import (
	"context"

	"github.com/tablemorph/tablemorph/internal/registry"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

// RegistryFunc adapts the service to the function registry so plans calling
// LOOKUP_PINCODE go through the live cache-then-API path instead of the
// built-in seed table.
func (s *PincodeService) RegistryFunc() registry.Func {
	return func(args registry.Args) (registry.Result, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.http.Timeout)
		defer cancel()
		place := s.Lookup(ctx, tabular.CellString(args.Value))
		return registry.Record(map[string]any{
			"city":    place.City,
			"state":   place.State,
			"country": place.Country,
		}, "city", "state", "country"), nil
	}
}
