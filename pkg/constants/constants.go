// Package constants provides shared constants for the machine-dashboard application.
package constants

// Spreadsheet column names as they appear in the master workbook.
const (
	ColumnVHNr          = "VH-nr."
	ColumnCode          = "Code"
	ColumnDescription   = "Omschrijving"
	ColumnDescriptionDE = "Beschreibung"
	ColumnBranch        = "Niederlassung"
	ColumnFamily        = "1. Product Family"
	ColumnGroup         = "2. Product Group"
	ColumnCostYTD       = "Kosten YTD"
	ColumnRevenueYTD    = "Umsätze YTD"
	ColumnDBYTD         = "DB YTD"
	ColumnMarginYTD     = "Marge YTD %"
)

// Column prefixes of the monthly figures, e.g. "Kosten Jan 25".
const (
	PrefixCost    = "Kosten "
	PrefixRevenue = "Umsätze "
	PrefixDB      = "DB "

	// MarkerYTD marks aggregate columns that are not a month.
	MarkerYTD = "YTD"
)

// RequiredColumns lists the columns a workbook must carry to be usable.
var RequiredColumns = []string{
	ColumnVHNr,
	ColumnBranch,
	ColumnCostYTD,
	ColumnRevenueYTD,
	ColumnDBYTD,
}

// Filter sentinels
const (
	// BranchAll selects every branch the user may see.
	BranchAll = "Gesamt"

	// OptionAll selects every product family or group.
	OptionAll = "Alle"

	// BranchUnrestricted in a user's branch list grants access to all branches.
	BranchUnrestricted = "alle"

	// BranchUnknown is the placeholder branch for unassigned machines.
	BranchUnknown = "Unbekannt"
)

// Analytics thresholds
const (
	// RelevanceFloor is the minimum YTD revenue (top list) or YTD cost
	// (worst list) for a machine to be ranked.
	RelevanceFloor = 1000.0

	// ParetoShare is the share of total cost the Pareto prefix must reach.
	ParetoShare = 0.8

	// MarginGood and MarginWarn are the margin bands in percent.
	MarginGood = 10.0
	MarginWarn = 5.0

	// DefaultRankingSize is the length of the top and worst lists.
	DefaultRankingSize = 10

	// DefaultGroupLimit is the number of product groups shown.
	DefaultGroupLimit = 20
)

// Financial constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// ConsistencyTolerance is the tolerance when comparing monthly sums to YTD.
	ConsistencyTolerance = 1.0

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultDataFile is the workbook read when no other source is configured.
	DefaultDataFile = "Dashboard_Master_DE_v2.xlsx"

	// DefaultUsersFile is the JSON user directory.
	DefaultUsersFile = "users.json"

	// EnvPrefix prefixes environment overrides, e.g. MD_CHAT_APIKEY.
	EnvPrefix = "MD"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for workbooks (20 MB)
	DefaultMaxUploadSizeBytes int64 = 20 * 1024 * 1024

	// DefaultSessionTTLSeconds is how long a login session lives.
	DefaultSessionTTLSeconds = 8 * 60 * 60

	// SessionCookieName names the session cookie.
	SessionCookieName = "md_session"
)

// Environment profiles
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Export formats
const (
	ExportXLSX = "xlsx"
	ExportCSV  = "csv"

	// ExportSheetName is the worksheet name of every export.
	ExportSheetName = "Daten"

	// MaxColumnWidth caps the computed export column width.
	MaxColumnWidth = 50
)
