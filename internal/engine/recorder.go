package engine

// Recorder receives engine events for metrics. metrics.Collector implements it.
type Recorder interface {
	ScanCompleted(outcome string)
	ValidationFailed(section string)
	PersistFailed(op string)
	MemberMutated(op string)
	Submitted()
}

type nopRecorder struct{}

func (nopRecorder) ScanCompleted(string)    {}
func (nopRecorder) ValidationFailed(string) {}
func (nopRecorder) PersistFailed(string)    {}
func (nopRecorder) MemberMutated(string)    {}
func (nopRecorder) Submitted()              {}

// Member mutation labels.
const (
	MutationAdd    = "add"
	MutationRemove = "remove"
	MutationRecord = "record"
	MutationToggle = "toggle"
	MutationImport = "import"
)
