// Package all registers every warehouse backend. Blank-import it from main
// to make the full set of kinds available to warehouse.New.
package all

import (
	_ "lakeload/internal/warehouse/bigquery"
	_ "lakeload/internal/warehouse/mssql"
	_ "lakeload/internal/warehouse/postgres"
	_ "lakeload/internal/warehouse/sqlite"
)
