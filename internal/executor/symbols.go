package executor

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"featureforge/internal/table"
)

// tableSymbols exposes the table package to interpreted code so generated
// transformations can accept and return *table.Table values.
func tableSymbols() interp.Exports {
	return interp.Exports{
		"featureforge/internal/table/table": {
			"New":     reflect.ValueOf(table.New),
			"ReadCSV": reflect.ValueOf(table.ReadCSV),
			"Diff":    reflect.ValueOf(table.Diff),
			"Table":   reflect.ValueOf((*table.Table)(nil)),
			"Kind":    reflect.ValueOf((*table.Kind)(nil)),
		},
	}
}
