package units

import "github.com/ceplan/itpei/normalize"

// Government levels as they appear in the NG column.
const (
	LevelRegional   = "Gobierno regional"
	LevelNational   = "Gobierno nacional"
	LevelDistrict   = "Municipalidad distrital"
	LevelProvincial = "Municipalidad provincial"
)

var levelChoices = normalize.NewChoices(map[string]string{
	"gobierno regional":        LevelRegional,
	"gobierno nacional":        LevelNational,
	"municipalidad distrital":  LevelDistrict,
	"municipalidad provincial": LevelProvincial,
})

var articulationByLevel = map[string][]string{
	LevelRegional:   {"PEDN 2050", "PDRC"},
	LevelNational:   {"PEDN 2050", "PESEM NO vigente", "PESEM vigente"},
	LevelDistrict:   {"PEDN 2050", "PDRC", "PDLC Provincial", "PDLC Distrital"},
	LevelProvincial: {"PEDN 2050", "PDRC", "PDLC Provincial", "PDLC Distrital"},
}

// ArticulationOptions returns the plans a unit of the given government level
// may articulate with. Unknown levels have no options.
func ArticulationOptions(level string) []string {
	canonical, ok := levelChoices.Lookup(level)
	if !ok {
		return nil
	}
	return append([]string(nil), articulationByLevel[canonical]...)
}
