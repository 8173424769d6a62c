package constant

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// IsTerminal reports whether no further transition can leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

type JobStatus string

const (
	JobStatusLaunched  JobStatus = "LAUNCHED"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

type ClipFormat string

const (
	ClipFormatVertical   ClipFormat = "vertical"
	ClipFormatSquare     ClipFormat = "square"
	ClipFormatHorizontal ClipFormat = "horizontal"
)

type ClipLength string

const (
	ClipLengthAuto     ClipLength = "auto"
	ClipLengthShort    ClipLength = "short"
	ClipLengthMedium   ClipLength = "medium"
	ClipLengthLong     ClipLength = "long"
	ClipLengthExtended ClipLength = "extended"
)

// LengthHint is the numeric bucket the clipping service expects for a preferred clip length.
func (l ClipLength) LengthHint() int {
	switch l {
	case ClipLengthShort:
		return 1
	case ClipLengthMedium:
		return 2
	case ClipLengthLong:
		return 3
	case ClipLengthExtended:
		return 4
	default:
		return 0
	}
}

// Result codes reported by the clipping service.
const (
	ClipperCodeSuccess    = 2000
	ClipperCodeProcessing = 1000
)

const DefaultLanguage = "en"

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

type StoreDriver string

const (
	StoreDriverPostgres StoreDriver = "postgres"
	StoreDriverMemory   StoreDriver = "memory"
)
