package types

import "strings"

// WorldClim V1 bioclim reference data.
const (
	// DefaultDataset is the Earth Engine image holding the 19 bioclim bands.
	DefaultDataset = "WORLDCLIM/V1/BIO"

	// DefaultScaleMeters is the native resolution of the dataset (30 arc-seconds).
	DefaultScaleMeters = 927.67

	// DatasetCitation credits the WorldClim surfaces the bands derive from.
	DatasetCitation = "Hijmans, R.J., S.E. Cameron, J.L. Parra, P.G. Jones and A. Jarvis, 2005. " +
		"Very High Resolution Interpolated Climate Surfaces for Global Land Areas. " +
		"International Journal of Climatology 25: 1965-1978. doi:10.1002/joc.1276."
)

// VariableMetadata describes one bioclimatic variable. Scale is the factor
// that converts the raw band value into Unit; extraction results keep the
// RAW values and expose the catalog so callers can interpret them.
type VariableMetadata struct {
	Symbol      string  `json:"symbol"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Scale       float64 `json:"scale"`
}

// BioclimVariables is the ordered catalog of the 19 bioclim bands as served
// by WORLDCLIM/V1/BIO. Symbols match the dataset's band names. Immutable
// reference data; all components MUST consult this catalog instead of
// hardcoding band names.
var BioclimVariables = []VariableMetadata{
	{Symbol: "bio01", Label: "BIO1", Description: "Annual mean temperature", Unit: "°C", Scale: 0.1},
	{Symbol: "bio02", Label: "BIO2", Description: "Mean diurnal temperature range", Unit: "°C", Scale: 0.1},
	{Symbol: "bio03", Label: "BIO3", Description: "Isothermality (BIO2/BIO7 x100)", Unit: "%", Scale: 1},
	{Symbol: "bio04", Label: "BIO4", Description: "Temperature seasonality (standard deviation x100)", Unit: "°C", Scale: 0.01},
	{Symbol: "bio05", Label: "BIO5", Description: "Max temperature of warmest month", Unit: "°C", Scale: 0.1},
	{Symbol: "bio06", Label: "BIO6", Description: "Min temperature of coldest month", Unit: "°C", Scale: 0.1},
	{Symbol: "bio07", Label: "BIO7", Description: "Temperature annual range (BIO5-BIO6)", Unit: "°C", Scale: 0.1},
	{Symbol: "bio08", Label: "BIO8", Description: "Mean temperature of wettest quarter", Unit: "°C", Scale: 0.1},
	{Symbol: "bio09", Label: "BIO9", Description: "Mean temperature of driest quarter", Unit: "°C", Scale: 0.1},
	{Symbol: "bio10", Label: "BIO10", Description: "Mean temperature of warmest quarter", Unit: "°C", Scale: 0.1},
	{Symbol: "bio11", Label: "BIO11", Description: "Mean temperature of coldest quarter", Unit: "°C", Scale: 0.1},
	{Symbol: "bio12", Label: "BIO12", Description: "Annual precipitation", Unit: "mm", Scale: 1},
	{Symbol: "bio13", Label: "BIO13", Description: "Precipitation of wettest month", Unit: "mm", Scale: 1},
	{Symbol: "bio14", Label: "BIO14", Description: "Precipitation of driest month", Unit: "mm", Scale: 1},
	{Symbol: "bio15", Label: "BIO15", Description: "Precipitation seasonality (coefficient of variation)", Unit: "%", Scale: 1},
	{Symbol: "bio16", Label: "BIO16", Description: "Precipitation of wettest quarter", Unit: "mm", Scale: 1},
	{Symbol: "bio17", Label: "BIO17", Description: "Precipitation of driest quarter", Unit: "mm", Scale: 1},
	{Symbol: "bio18", Label: "BIO18", Description: "Precipitation of warmest quarter", Unit: "mm", Scale: 1},
	{Symbol: "bio19", Label: "BIO19", Description: "Precipitation of coldest quarter", Unit: "mm", Scale: 1},
}

// CatalogIndex returns the position of a band in the catalog, matching the
// symbol or label case-insensitively. The bool reports whether it was found.
func CatalogIndex(name string) (int, bool) {
	lower := strings.ToLower(name)
	for i, v := range BioclimVariables {
		if lower == v.Symbol || lower == strings.ToLower(v.Label) {
			return i, true
		}
	}
	return 0, false
}

// LookupVariable returns the catalog entry for a band name.
func LookupVariable(name string) (VariableMetadata, bool) {
	if i, ok := CatalogIndex(name); ok {
		return BioclimVariables[i], true
	}
	return VariableMetadata{}, false
}
