package firmware

// Status is the firmwareUpdateStatus resource's value set (§4.F step 8,
// §4.H).
type Status string

const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusUpToDate  Status = "upToDate"
)

// preservedInProgressStatuses are statuses that must not be overwritten
// by a new "pending" determination (§4.F step 3: "unless current status
// is started or one of the explicitly preserved in-progress states").
var preservedInProgressStatuses = map[Status]bool{
	StatusStarted: true,
}

// ShouldPreserve reports whether current should be left alone rather
// than overwritten with StatusPending.
func ShouldPreserve(current Status) bool {
	return preservedInProgressStatuses[current]
}
