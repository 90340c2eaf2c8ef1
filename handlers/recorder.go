package handlers

// Recorder receives business events. *prometheus.Metrics implements it.
type Recorder interface {
	RecordAuthEvent(event string, err error)
	RecordTodoOperation(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, error) {}
func (nopRecorder) RecordTodoOperation(string)    {}
